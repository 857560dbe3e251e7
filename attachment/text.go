package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextExtensions lists the document types accepted as objective context.
var TextExtensions = []string{".txt", ".doc", ".docx", ".pdf", ".md", ".html", ".csv", ".json"}

var (
	ErrUnsupportedType = errors.New("attachment: unsupported file type")
	ErrNotText         = errors.New("attachment: content is not valid UTF-8 text")
)

// ReadText decodes a document as UTF-8. A UTF-8 or UTF-16 byte order mark
// selects the decoding and is stripped; without one the bytes must already be
// valid UTF-8.
func ReadText(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("attachment: read text: %w", err)
	}
	if !hasBOM(raw) {
		if !utf8.Valid(raw) {
			return "", ErrNotText
		}
		return string(raw), nil
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return "", fmt.Errorf("attachment: decode text: %w", err)
	}
	return string(decoded), nil
}

func hasBOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(b, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(b, []byte{0xFF, 0xFE})
}

// LoadText reads the document at path and returns its base name and text.
func LoadText(path string) (string, string, error) {
	if !hasExtension(path, TextExtensions) {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("attachment: open %s: %w", path, err)
	}
	defer f.Close()

	content, err := ReadText(f)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return filepath.Base(path), content, nil
}

func hasExtension(path string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
