package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
	FormatWEBP = "webp"
)

// Encoder turns a finished image into file bytes for a normalized format.
type Encoder interface {
	Encode(img image.Image, format string) ([]byte, error)
}

// FormatFromPath picks the output format from the extension of a file path
// or object key.
func FormatFromPath(p string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.ReplaceAll(p, "\\", "/")), "."))
	switch ext {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "webp":
		return FormatWEBP, nil
	case "":
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, p)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func ContentTypeForFormat(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// decodeImage decodes any registered format and converts it to NRGBA.
func decodeImage(data []byte) (*image.NRGBA, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("image data is empty")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return imaging.Clone(img), format, nil
}

type stdEncoder struct {
	jpegQuality int
}

func (e stdEncoder) Encode(img image.Image, format string) ([]byte, error) {
	var (
		buf bytes.Buffer
		err error
	)

	switch format {
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.jpegQuality))
	case FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF)
	case FormatBMP:
		err = imaging.Encode(&buf, img, imaging.BMP)
	case FormatTIFF:
		err = imaging.Encode(&buf, img, imaging.TIFF)
	case FormatWEBP:
		return nil, fmt.Errorf("%w: webp export requires govips build tag", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
