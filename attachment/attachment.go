// Package attachment normalizes the optional context a user attaches to an
// objective: one text document folded into the objective text and at most one
// image re-encoded for transport.
package attachment

import "strings"

const none = "None"

// Image is a transport-ready image: PNG bytes, base64 encoded.
type Image struct {
	Name      string
	MediaType string
	Data      string
}

// Bundle is the attachment set of one run. It is read-only once the run starts.
type Bundle struct {
	// TextFile names the document whose text was appended to the objective.
	TextFile string
	Image    *Image
}

// HasImage reports whether the bundle carries an image.
func (b Bundle) HasImage() bool {
	return b.Image != nil && b.Image.Data != ""
}

// TextFileName returns the attached document's name or "None".
func (b Bundle) TextFileName() string {
	if strings.TrimSpace(b.TextFile) == "" {
		return none
	}
	return b.TextFile
}

// ImageName returns the attached image's name or "None".
func (b Bundle) ImageName() string {
	if b.Image == nil || strings.TrimSpace(b.Image.Name) == "" {
		return none
	}
	return b.Image.Name
}

// AppendToObjective folds document text into the objective, separated by a
// blank line. Empty content leaves the objective unchanged.
func AppendToObjective(objective, content string) string {
	if content == "" {
		return objective
	}
	return objective + "\n\n" + content
}
