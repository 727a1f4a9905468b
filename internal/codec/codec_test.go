package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"
)

func TestPNG_RoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(1, 2, color.RGBA{R: 200, G: 10, B: 30, A: 255})

	c := NewPNG()
	var buf bytes.Buffer
	if err := c.Encode(&buf, src); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	img, err := c.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Fatalf("bounds = %v, want %v", img.Bounds(), src.Bounds())
	}
	r, g, b, _ := img.At(1, 2).RGBA()
	if r>>8 != 200 || g>>8 != 10 || b>>8 != 30 {
		t.Errorf("pixel = (%d, %d, %d), want (200, 10, 30)", r>>8, g>>8, b>>8)
	}
}

func TestPNG_DecodeTruncated(t *testing.T) {
	if _, err := NewPNG().Decode(strings.NewReader("\x89PNG\r\n\x1a\n")); err == nil {
		t.Fatal("expected error decoding a truncated body")
	}
}

func TestGrayAlpha_SetAt(t *testing.T) {
	img := NewGrayAlpha(image.Rect(10, 10, 14, 12))

	img.Set(11, 11, color.Gray{Y: 120})
	got := img.GrayAlphaAt(11, 11)
	if got.Y != 120 || got.A != 255 {
		t.Errorf("GrayAlphaAt() = %+v, want {Y:120 A:255}", got)
	}

	if img.Opaque() {
		t.Error("partially written image reported opaque")
	}

	// Out of bounds writes are ignored, reads return zero.
	img.Set(0, 0, color.White)
	if got := img.GrayAlphaAt(0, 0); got != (GrayAlphaColor{}) {
		t.Errorf("out of bounds read = %+v", got)
	}
}

func TestGrayAlphaModel_ConvertsColor(t *testing.T) {
	got := GrayAlphaModel.Convert(color.RGBA{R: 255, G: 255, B: 255, A: 255}).(GrayAlphaColor)
	if got.Y != 255 || got.A != 255 {
		t.Errorf("white converted to %+v", got)
	}

	got = GrayAlphaModel.Convert(color.NRGBA{R: 0, G: 0, B: 0, A: 128}).(GrayAlphaColor)
	if got.Y != 0 || got.A != 128 {
		t.Errorf("translucent black converted to %+v", got)
	}
}

func TestGrayAlpha_EncodesAsPNG(t *testing.T) {
	img := NewGrayAlpha(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.Gray{Y: uint8(60 * (x + y))})
		}
	}

	c := NewPNG()
	var buf bytes.Buffer
	if err := c.Encode(&buf, img); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := c.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	y, _, _, _ := decoded.At(1, 1).RGBA()
	if y>>8 != 120 {
		t.Errorf("decoded intensity = %d, want 120", y>>8)
	}
}

var _ draw.RGBA64Image = (*GrayAlpha)(nil)

func TestGrayAlpha_SetRGBA64(t *testing.T) {
	tests := []struct {
		name string
		in   color.Color
	}{
		{name: "opaque white", in: color.White},
		{name: "opaque gray", in: color.Gray{Y: 90}},
		{name: "opaque red", in: color.RGBA{R: 200, A: 255}},
		{name: "half transparent", in: color.NRGBA{R: 120, G: 120, B: 120, A: 128}},
		{name: "transparent", in: color.Transparent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slow := NewGrayAlpha(image.Rect(0, 0, 1, 1))
			slow.Set(0, 0, tt.in)

			fast := NewGrayAlpha(image.Rect(0, 0, 1, 1))
			fast.SetRGBA64(0, 0, color.RGBA64Model.Convert(tt.in).(color.RGBA64))

			want, got := slow.GrayAlphaAt(0, 0), fast.GrayAlphaAt(0, 0)
			if d := int(want.Y) - int(got.Y); d < -1 || d > 1 || want.A != got.A {
				t.Errorf("SetRGBA64 stored %+v, Set stored %+v", got, want)
			}
			if back := fast.RGBA64At(0, 0); back.A != uint16(got.A)*0x101 {
				t.Errorf("RGBA64At alpha = %d, want %d", back.A, uint16(got.A)*0x101)
			}
		})
	}
}

func TestGrayAlpha_SetRGBA64_OutOfBounds(t *testing.T) {
	img := NewGrayAlpha(image.Rect(0, 0, 2, 2))
	img.SetRGBA64(5, 5, color.RGBA64{A: 0xffff})
	for _, b := range img.Pix {
		if b != 0 {
			t.Fatal("write outside bounds changed the image")
		}
	}
}
