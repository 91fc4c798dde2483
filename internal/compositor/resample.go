package compositor

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Resampler scales an image to a size×size square with a Lanczos-class filter.
type Resampler interface {
	Resample(img *image.NRGBA, size int) (*image.NRGBA, error)
}

type lanczosResampler struct{}

func (lanczosResampler) Resample(img *image.NRGBA, size int) (*image.NRGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("resample requires size > 0, got %d", size)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("source image has invalid dimensions")
	}
	return imaging.Resize(img, size, size, imaging.Lanczos), nil
}
