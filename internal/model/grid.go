package model

import (
	"fmt"
	"image"
	"strconv"
	"time"
)

// GridLevel is N in the N×N tile decomposition of one full-disk image.
type GridLevel int

// Levels published by the tile server.
var supportedLevels = []GridLevel{1, 2, 4, 8, 16, 20}

// DefaultLevel matches the downloader's historic default.
const DefaultLevel GridLevel = 4

// MaxCompositeSide bounds the edge of an assembled image in pixels: the
// native size of the finest grid, 20 tiles of 550.
const MaxCompositeSide = 20 * 550

// ParseGridLevel parses and validates a level given as text.
func ParseGridLevel(s string) (GridLevel, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &InvalidInputError{Field: "level", Value: s, Reason: "not a number", Err: err}
	}
	l := GridLevel(n)
	if err := l.Validate(); err != nil {
		return 0, err
	}
	return l, nil
}

// Validate checks the level against the server's supported set.
func (l GridLevel) Validate() error {
	for _, s := range supportedLevels {
		if l == s {
			return nil
		}
	}
	return &InvalidInputError{Field: "level", Value: strconv.Itoa(int(l)), Reason: "must be one of 1, 2, 4, 8, 16, 20"}
}

// Tiles returns N².
func (l GridLevel) Tiles() int {
	return int(l) * int(l)
}

// Coordinates enumerates every tile of the grid in row-major order.
func (l GridLevel) Coordinates() []TileCoordinate {
	n := int(l)
	coords := make([]TileCoordinate, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			coords = append(coords, TileCoordinate{X: x, Y: y})
		}
	}
	return coords
}

// TileCoordinate is a cell of the grid: column X and row Y, both in [0, N).
type TileCoordinate struct {
	X int
	Y int
}

func (c TileCoordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// TileID is the fetch key of one tile. It is comparable, so two IDs built
// from the same inputs are equal and interchangeable as map keys.
type TileID struct {
	Coord TileCoordinate
	Level GridLevel
	Time  time.Time
	Band  Band
}

// NewTileID normalises the timestamp to UTC at minute resolution.
func NewTileID(coord TileCoordinate, level GridLevel, t time.Time, band Band) TileID {
	return TileID{
		Coord: coord,
		Level: level,
		Time:  t.UTC().Truncate(time.Minute),
		Band:  band,
	}
}

func (id TileID) String() string {
	return fmt.Sprintf("%s %dd %s %s", id.Coord, id.Level, id.Band, id.Time.Format(time.RFC3339))
}

// DecodedTile is a tile's pixels together with the cell it was fetched for.
type DecodedTile struct {
	Coord TileCoordinate
	Image image.Image
}

// Composite is one assembled full-disk image.
type Composite struct {
	Time  time.Time
	Level GridLevel
	Band  Band
	Scale int
	Image image.Image
}
