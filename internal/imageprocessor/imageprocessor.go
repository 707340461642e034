package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

// Media types accepted for upload.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
)

// MaxPreviewPixels bounds the declared dimensions of an image before it is
// decoded for preview. Decoders allocate the full pixel buffer up front.
const MaxPreviewPixels = 50_000_000

var (
	// ErrEmptyImage is returned for an upload without content.
	ErrEmptyImage = errors.New("image data cannot be empty")
	// ErrUnsupportedFormat is returned for anything other than jpg, jpeg or png.
	ErrUnsupportedFormat = errors.New("unsupported image format: expected JPG, JPEG or PNG")
	// ErrImageTooLarge is returned when the declared dimensions exceed MaxPreviewPixels.
	ErrImageTooLarge = errors.New("image dimensions too large to preview")
)

// Image is an uploaded image as it will be forwarded to the analysis API.
type Image struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

// NewImage validates the file name extension and wraps the bytes.
func NewImage(name string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	mediaType, err := MediaTypeFor(name)
	if err != nil {
		return nil, err
	}
	return &Image{Name: filepath.Base(name), MediaType: mediaType, Data: data}, nil
}

// MediaTypeFor maps a file name to its declared media type.
func MediaTypeFor(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return MediaTypeJPEG, nil
	case ".png":
		return MediaTypePNG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Thumbnail returns a copy of the image scaled down to maxWidth, keeping the
// aspect ratio. Images already narrower than maxWidth are re-encoded as is.
func Thumbnail(img *Image, maxWidth uint) ([]byte, string, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, "", ErrEmptyImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPreviewPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	decoded, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	if maxWidth > 0 && uint(decoded.Bounds().Dx()) > maxWidth {
		decoded = resize.Resize(maxWidth, 0, decoded, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, decoded); err != nil {
			return nil, "", fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), MediaTypePNG, nil
	case "jpeg":
		if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", fmt.Errorf("failed to encode jpeg: %w", err)
		}
		return buf.Bytes(), MediaTypeJPEG, nil
	default:
		return nil, "", fmt.Errorf("%w: decoded as %s", ErrUnsupportedFormat, format)
	}
}
