package attachment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	// Decoders for every accepted upload format.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TransportMediaType is the single encoding every image is converted to.
const TransportMediaType = "image/png"

// ImageExtensions lists the raster formats accepted for upload.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp"}

// EncodeImage decodes any supported raster image and re-encodes it as a
// base64 PNG, whatever the source format was.
func EncodeImage(name string, r io.Reader) (*Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("attachment: decode image %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("attachment: encode %s image %s as png: %w", format, name, err)
	}

	return &Image{
		Name:      name,
		MediaType: TransportMediaType,
		Data:      base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// LoadImage reads and re-encodes the image at path.
func LoadImage(path string) (*Image, error) {
	if !hasExtension(path, ImageExtensions) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: open %s: %w", path, err)
	}
	defer f.Close()

	return EncodeImage(filepath.Base(path), f)
}
