//go:build govips && cgo

package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

type govipsResampler struct{}

func (govipsResampler) Resample(img *image.NRGBA, size int) (*image.NRGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("resample requires size > 0, got %d", size)
	}

	ref, err := loadGovipsImage(img)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	if ref.Width() <= 0 || ref.Height() <= 0 {
		return nil, fmt.Errorf("source image has invalid dimensions")
	}

	hscale := float64(size) / float64(ref.Width())
	vscale := float64(size) / float64(ref.Height())
	if err := ref.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}

	data, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export resized image: %w", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode resized image: %w", err)
	}

	out := imaging.Clone(decoded)
	// libvips rounds scaled dimensions; snap off-by-one results to the target.
	if b := out.Bounds(); b.Dx() != size || b.Dy() != size {
		out = imaging.Resize(out, size, size, imaging.Lanczos)
	}
	return out, nil
}

type govipsEncoder struct {
	fallback stdEncoder
}

func (e govipsEncoder) Encode(img image.Image, format string) ([]byte, error) {
	if format != FormatWEBP {
		return e.fallback.Encode(img, format)
	}

	ref, err := loadGovipsImage(img)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	params := vips.NewWebpExportParams()
	params.Lossless = true
	data, _, err := ref.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return data, nil
}

func loadGovipsImage(img image.Image) (*vips.ImageRef, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("stage image for libvips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load image into libvips: %w", err)
	}
	return ref, nil
}
