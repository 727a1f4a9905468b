package codec

import (
	"image"
	"image/color"
)

// GrayAlphaColor is an 8-bit intensity with non-premultiplied alpha.
type GrayAlphaColor struct {
	Y, A uint8
}

func (c GrayAlphaColor) RGBA() (r, g, b, a uint32) {
	y := uint32(c.Y)
	y |= y << 8
	a = uint32(c.A)
	a |= a << 8
	y = y * a / 0xffff
	return y, y, y, a
}

// GrayAlphaModel converts any color to GrayAlphaColor using the same luma
// weights as color.GrayModel.
var GrayAlphaModel = color.ModelFunc(grayAlphaModel)

func grayAlphaModel(c color.Color) color.Color {
	if _, ok := c.(GrayAlphaColor); ok {
		return c
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	y := (19595*uint32(n.R) + 38470*uint32(n.G) + 7471*uint32(n.B) + 1<<15) >> 16
	return GrayAlphaColor{Y: uint8(y), A: n.A}
}

// GrayAlpha is a two-channel image: intensity and alpha, two bytes per pixel.
type GrayAlpha struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewGrayAlpha returns a transparent image with the given bounds.
func NewGrayAlpha(r image.Rectangle) *GrayAlpha {
	w, h := r.Dx(), r.Dy()
	return &GrayAlpha{
		Pix:    make([]uint8, 2*w*h),
		Stride: 2 * w,
		Rect:   r,
	}
}

func (p *GrayAlpha) ColorModel() color.Model { return GrayAlphaModel }

func (p *GrayAlpha) Bounds() image.Rectangle { return p.Rect }

func (p *GrayAlpha) At(x, y int) color.Color {
	return p.GrayAlphaAt(x, y)
}

// GrayAlphaAt returns the pixel at (x, y), or the zero color outside bounds.
func (p *GrayAlpha) GrayAlphaAt(x, y int) GrayAlphaColor {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return GrayAlphaColor{}
	}
	i := p.PixOffset(x, y)
	return GrayAlphaColor{Y: p.Pix[i], A: p.Pix[i+1]}
}

// PixOffset returns the index of the first byte of pixel (x, y) in Pix.
func (p *GrayAlpha) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

func (p *GrayAlpha) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	ga := GrayAlphaModel.Convert(c).(GrayAlphaColor)
	p.Pix[i] = ga.Y
	p.Pix[i+1] = ga.A
}

// RGBA64At returns the premultiplied color at (x, y).
func (p *GrayAlpha) RGBA64At(x, y int) color.RGBA64 {
	r, g, b, a := p.GrayAlphaAt(x, y).RGBA()
	return color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: uint16(a)}
}

// SetRGBA64 stores a premultiplied color without going through a
// color.Color interface. Resamplers in golang.org/x/image/draw use it.
func (p *GrayAlpha) SetRGBA64(x, y int, c color.RGBA64) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	a := uint32(c.A)
	if a == 0 {
		p.Pix[i], p.Pix[i+1] = 0, 0
		return
	}
	// Premultiplied luma never exceeds a, so both products fit in 32 bits.
	y16 := (19595*uint32(c.R) + 38470*uint32(c.G) + 7471*uint32(c.B) + 1<<15) >> 16
	p.Pix[i] = uint8((y16 * 0xffff / a) >> 8)
	p.Pix[i+1] = uint8(a >> 8)
}

// Opaque scans the alpha channel.
func (p *GrayAlpha) Opaque() bool {
	for i := 1; i < len(p.Pix); i += 2 {
		if p.Pix[i] != 0xff {
			return false
		}
	}
	return true
}
