package compositor

import (
	"image"
	"math"
)

// scaleAlpha multiplies every alpha sample of img by opacity in place,
// rounding to the nearest integer. Colour samples are left untouched.
func scaleAlpha(img *image.NRGBA, opacity float64) {
	if opacity >= 1 {
		return
	}
	if opacity < 0 {
		opacity = 0
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Pix[i+3] = uint8(math.Round(float64(img.Pix[i+3]) * opacity))
			i += 4
		}
	}
}

// compositeOver returns src laid over dst using straight (non-premultiplied)
// alpha. Both images must have the same size.
func compositeOver(dst, src *image.NRGBA) *image.NRGBA {
	db := dst.Bounds()
	sb := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, db.Dx(), db.Dy()))

	for y := 0; y < db.Dy(); y++ {
		di := dst.PixOffset(db.Min.X, db.Min.Y+y)
		si := src.PixOffset(sb.Min.X, sb.Min.Y+y)
		oi := out.PixOffset(0, y)
		for x := 0; x < db.Dx(); x++ {
			blendPixel(out.Pix[oi:oi+4:oi+4], dst.Pix[di:di+4:di+4], src.Pix[si:si+4:si+4])
			di += 4
			si += 4
			oi += 4
		}
	}
	return out
}

func blendPixel(out, d, s []uint8) {
	switch s[3] {
	case 0:
		copy(out, d)
		return
	case 255:
		copy(out, s)
		return
	}

	sa := float64(s[3]) / 255
	da := float64(d[3]) / 255
	rest := da * (1 - sa)
	oa := sa + rest

	for c := 0; c < 3; c++ {
		v := (float64(s[c])*sa + float64(d[c])*rest) / oa
		out[c] = clampChannel(v)
	}
	out[3] = clampChannel(oa * 255)
}

func clampChannel(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
