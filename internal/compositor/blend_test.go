package compositor

import (
	"image"
	"image/color"
	"testing"
)

func TestScaleAlphaRoundsAndKeepsColour(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 200})
	img.SetNRGBA(1, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetNRGBA(2, 0, color.NRGBA{A: 1})

	scaleAlpha(img, 0.5)

	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 10, G: 20, B: 30, A: 100}) {
		t.Fatalf("unexpected pixel 0: %+v", got)
	}
	if got := img.NRGBAAt(1, 0).A; got != 128 {
		t.Fatalf("expected 255*0.5 to round to 128, got %d", got)
	}
	if got := img.NRGBAAt(2, 0).A; got != 1 {
		t.Fatalf("expected 1*0.5 to round to 1, got %d", got)
	}
}

func TestScaleAlphaZeroClearsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	scaleAlpha(img, 0)

	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if a := img.NRGBAAt(x, y).A; a != 0 {
				t.Fatalf("expected alpha 0 at %d,%d, got %d", x, y, a)
			}
		}
	}
}

func TestBlendPixel(t *testing.T) {
	cases := []struct {
		name string
		dst  color.NRGBA
		src  color.NRGBA
		want color.NRGBA
	}{
		{
			name: "transparent source keeps destination",
			dst:  color.NRGBA{R: 10, G: 20, B: 30, A: 40},
			src:  color.NRGBA{R: 255, G: 255, B: 255, A: 0},
			want: color.NRGBA{R: 10, G: 20, B: 30, A: 40},
		},
		{
			name: "opaque source replaces destination",
			dst:  color.NRGBA{R: 10, G: 20, B: 30, A: 255},
			src:  color.NRGBA{R: 200, G: 100, B: 50, A: 255},
			want: color.NRGBA{R: 200, G: 100, B: 50, A: 255},
		},
		{
			name: "half source over opaque destination",
			dst:  color.NRGBA{R: 0, G: 0, B: 0, A: 255},
			src:  color.NRGBA{R: 255, G: 255, B: 255, A: 128},
			want: color.NRGBA{R: 128, G: 128, B: 128, A: 255},
		},
		{
			name: "half source over transparent destination keeps source colour",
			dst:  color.NRGBA{R: 9, G: 9, B: 9, A: 0},
			src:  color.NRGBA{R: 100, G: 150, B: 200, A: 128},
			want: color.NRGBA{R: 100, G: 150, B: 200, A: 128},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := make([]uint8, 4)
			blendPixel(out, []uint8{tc.dst.R, tc.dst.G, tc.dst.B, tc.dst.A}, []uint8{tc.src.R, tc.src.G, tc.src.B, tc.src.A})
			got := color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestCompositeOverLeavesInputsUntouched(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range dst.Pix {
		dst.Pix[i] = 50
		src.Pix[i] = 200
	}

	out := compositeOver(dst, src)

	if out == dst || out == src {
		t.Fatal("expected a new image")
	}
	if dst.Pix[0] != 50 || src.Pix[0] != 200 {
		t.Fatal("inputs were modified")
	}
	if out.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
}
