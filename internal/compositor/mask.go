package compositor

import (
	"image"
	"image/color"
)

// circleMask is an alpha-only square image that is opaque inside the
// inscribed circle and transparent outside it. Pixels are sampled at their
// centres, so there is no partial coverage at the rim.
type circleMask struct {
	size int
}

func newCircleMask(size int) circleMask {
	return circleMask{size: size}
}

func (m circleMask) ColorModel() color.Model {
	return color.AlphaModel
}

func (m circleMask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.size, m.size)
}

func (m circleMask) At(x, y int) color.Color {
	return color.Alpha{A: m.alphaAt(x, y)}
}

func (m circleMask) alphaAt(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.size || y >= m.size {
		return 0
	}

	r := float64(m.size) / 2
	dx := float64(x) + 0.5 - r
	dy := float64(y) + 0.5 - r
	if dx*dx+dy*dy <= r*r {
		return 255
	}
	return 0
}

// applyMask replaces the alpha channel of img with the mask.
func applyMask(img *image.NRGBA, mask circleMask) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < b.Dx(); x++ {
			img.Pix[i+3] = mask.alphaAt(x, y)
			i += 4
		}
	}
}
