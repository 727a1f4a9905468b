// Package compose assembles decoded tiles into one full-disk raster.
package compose

import (
	"errors"
	"fmt"
	"image"
	"strconv"

	xdraw "golang.org/x/image/draw"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/codec"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

// ErrIncompleteGrid is returned when the tile set does not cover the grid
// exactly once.
var ErrIncompleteGrid = errors.New("incomplete tile grid")

// NewCanvas allocates an empty (level·scale)² canvas in the pixel format of
// band: RGBA for true color, GrayAlpha for a spectral channel.
func NewCanvas(level model.GridLevel, scale int, band model.Band) xdraw.Image {
	side := int(level) * scale
	r := image.Rect(0, 0, side, side)
	if band.IsTrueColor() {
		return image.NewRGBA(r)
	}
	return codec.NewGrayAlpha(r)
}

// Compose resamples each tile to scale×scale and pastes it with its top-left
// corner at (x·scale, y·scale). Placement comes from each tile's own
// coordinate, so the order of tiles does not matter.
func Compose(level model.GridLevel, scale int, band model.Band, tiles []model.DecodedTile) (xdraw.Image, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}
	if scale < 1 {
		return nil, &model.InvalidInputError{Field: "scale", Value: strconv.Itoa(scale), Reason: "must be at least 1"}
	}
	if scale > model.MaxCompositeSide/int(level) {
		return nil, &model.InvalidInputError{
			Field:  "scale",
			Value:  strconv.Itoa(scale),
			Reason: fmt.Sprintf("level %d composites are limited to %d px per tile", level, model.MaxCompositeSide/int(level)),
		}
	}
	if len(tiles) != level.Tiles() {
		return nil, fmt.Errorf("%w: got %d tiles for a %dx%d grid", ErrIncompleteGrid, len(tiles), level, level)
	}

	n := int(level)
	seen := make(map[model.TileCoordinate]bool, len(tiles))
	for _, tile := range tiles {
		c := tile.Coord
		if c.X < 0 || c.X >= n || c.Y < 0 || c.Y >= n {
			return nil, fmt.Errorf("%w: tile %s outside a %dx%d grid", ErrIncompleteGrid, c, n, n)
		}
		if seen[c] {
			return nil, fmt.Errorf("%w: tile %s appears twice", ErrIncompleteGrid, c)
		}
		if tile.Image == nil {
			return nil, fmt.Errorf("%w: tile %s has no pixels", ErrIncompleteGrid, c)
		}
		seen[c] = true
	}

	canvas := NewCanvas(level, scale, band)
	for _, tile := range tiles {
		x, y := tile.Coord.X*scale, tile.Coord.Y*scale
		dst := image.Rect(x, y, x+scale, y+scale)
		xdraw.BiLinear.Scale(canvas, dst, tile.Image, tile.Image.Bounds(), xdraw.Src, nil)
	}
	return canvas, nil
}
