// Package codec decodes downloaded tiles and encodes finished composites.
//
// Tiles are served as PNG. True-color composites are RGBA canvases with an
// opaque alpha channel; spectral composites use GrayAlpha, an intensity plus
// alpha buffer, which the PNG encoder writes through its generic path.
package codec

import (
	"fmt"
	"image"
	"image/png"
	"io"
)

// PNG implements tile decoding and composite encoding.
type PNG struct {
	encoder png.Encoder
}

// NewPNG returns a codec using the default compression level.
func NewPNG() *PNG {
	return &PNG{encoder: png.Encoder{CompressionLevel: png.DefaultCompression}}
}

// Decode reads one tile.
func (c *PNG) Decode(r io.Reader) (image.Image, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

// Encode writes img as PNG.
func (c *PNG) Encode(w io.Writer, img image.Image) error {
	if err := c.encoder.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ContentType is the MIME type of encoded output.
func (c *PNG) ContentType() string {
	return "image/png"
}
