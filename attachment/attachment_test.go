package attachment

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleDescriptors(t *testing.T) {
	var empty Bundle
	assert.Equal(t, "None", empty.TextFileName())
	assert.Equal(t, "None", empty.ImageName())
	assert.False(t, empty.HasImage())

	b := Bundle{TextFile: "notes.md", Image: &Image{Name: "chart.jpg", MediaType: TransportMediaType, Data: "AAAA"}}
	assert.Equal(t, "notes.md", b.TextFileName())
	assert.Equal(t, "chart.jpg", b.ImageName())
	assert.True(t, b.HasImage())
}

func TestAppendToObjective(t *testing.T) {
	assert.Equal(t, "Summarize doc X\n\nbody", AppendToObjective("Summarize doc X", "body"))
	assert.Equal(t, "Summarize doc X", AppendToObjective("Summarize doc X", ""))
}

func TestReadText(t *testing.T) {
	text, err := ReadText(strings.NewReader("plain text ✓"))
	require.NoError(t, err)
	assert.Equal(t, "plain text ✓", text)

	text, err = ReadText(bytes.NewReader([]byte{0xEF, 0xBB, 0xBF, 'h', 'i'}))
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	text, err = ReadText(bytes.NewReader([]byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}))
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	_, err = ReadText(bytes.NewReader([]byte{0xC3, 0x28}))
	assert.ErrorIs(t, err, ErrNotText)
}

func TestLoadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.md")
	require.NoError(t, os.WriteFile(path, []byte("# Brief\nShip it."), 0o644))

	name, content, err := LoadText(path)
	require.NoError(t, err)
	assert.Equal(t, "brief.md", name)
	assert.Equal(t, "# Brief\nShip it.", content)

	_, _, err = LoadText(filepath.Join(dir, "binary.exe"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, _, err = LoadText(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(2, 1, color.RGBA{B: 255, A: 255})
	return img
}

func decodeTransport(t *testing.T, img *Image) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(img.Data)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return decoded
}

func TestEncodeImageConvertsToPNG(t *testing.T) {
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, testImage(), nil))

	img, err := EncodeImage("photo.jpg", &jpg)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", img.Name)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, image.Rect(0, 0, 3, 2), decodeTransport(t, img).Bounds())
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anim.gif")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gif.Encode(f, testImage(), nil))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "anim.gif", img.Name)
	assert.Equal(t, image.Rect(0, 0, 3, 2), decodeTransport(t, img).Bounds())

	_, err = LoadImage(filepath.Join(dir, "logo.svg"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeImageRejectsGarbage(t *testing.T) {
	_, err := EncodeImage("broken.png", strings.NewReader("not an image"))
	assert.Error(t, err)
}
