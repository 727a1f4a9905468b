package addressing

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

const (
	// DefaultBaseURL is the public NICT Himawari tile server.
	DefaultBaseURL = "https://himawari8-dl.nict.go.jp/himawari8/img"

	// TrueColorImage is the path segment of the RGB composite product.
	TrueColorImage = "D531106"

	// TileSize is the native pixel size of every published tile,
	// independent of the scale requested for the composite.
	TileSize = 550

	// DefaultIncrement is the server's publication cadence.
	DefaultIncrement = 10 * time.Minute

	timeLayout = "2006/01/02/150405"
)

// Scheme builds tile and status URLs against one server root.
type Scheme struct {
	BaseURL string
}

// NewScheme returns a Scheme rooted at baseURL, or at DefaultBaseURL if empty.
func NewScheme(baseURL string) Scheme {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Scheme{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// TileURL returns the address of one tile:
// {base}/{band}/{level}d/550/{YYYY}/{MM}/{DD}/{HHMMSS}_{x}_{y}.png
func (s Scheme) TileURL(id model.TileID) string {
	return fmt.Sprintf("%s/%s/%dd/%d/%s_%d_%d.png",
		s.BaseURL,
		BandSegment(id.Band),
		id.Level,
		TileSize,
		id.Time.UTC().Format(timeLayout),
		id.Coord.X,
		id.Coord.Y,
	)
}

// LatestURL returns the status document naming the newest published image.
func (s Scheme) LatestURL() string {
	return s.BaseURL + "/" + TrueColorImage + "/latest.json"
}

// BandSegment maps a band to its path segment on the server.
func BandSegment(b model.Band) string {
	if b.IsTrueColor() {
		return TrueColorImage
	}
	return fmt.Sprintf("FULL_24h/B%02d", b.Channel())
}

// Align drops seconds and truncates the minutes of t down to a multiple of
// increment within the hour. The result is in UTC.
func Align(t time.Time, increment time.Duration) time.Time {
	t = t.UTC()
	step := int(increment / time.Minute)
	if step < 1 {
		step = 1
	}
	minute := (t.Minute() / step) * step
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}

// Steps yields floor((finish-start)/increment) timestamps beginning at start
// aligned by Align, each increment apart. The sequence is computed lazily and
// can be ranged over more than once.
func Steps(start, finish time.Time, increment time.Duration) iter.Seq[time.Time] {
	base := Align(start, increment)
	var count int64
	if increment > 0 && !finish.Before(start) {
		count = int64(finish.Sub(start) / increment)
	}
	return func(yield func(time.Time) bool) {
		for i := int64(0); i < count; i++ {
			if !yield(base.Add(time.Duration(i) * increment)) {
				return
			}
		}
	}
}
