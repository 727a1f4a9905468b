// Package progress displays tile and image completion counts.
//
// Sinks are a side channel: they are told about completions and never
// influence fetching or composing.
package progress

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// Sink receives completion events. Implementations must be safe for
// concurrent use and must not block.
type Sink interface {
	TileComplete()
	ImageComplete()
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) TileComplete()  {}
func (Nop) ImageComplete() {}
func (Nop) Close()         {}

// Bars renders one tracker for tiles and one for images.
type Bars struct {
	writer        progress.Writer
	tilesPerImage int
	tiles         *progress.Tracker
	images        *progress.Tracker
	done          chan struct{}
}

// NewBars starts rendering to out. tilesPerImage is N² of the requested
// grid and images the number of composites expected.
func NewBars(out io.Writer, tilesPerImage, images int) *Bars {
	images = max(images, 1)
	tilesPerImage = max(tilesPerImage, 1)

	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.ShowETA(true)
	pw.SetStyle(progress.StyleDefault)

	b := &Bars{
		writer:        pw,
		tilesPerImage: tilesPerImage,
		tiles:         &progress.Tracker{Message: "tiles", Total: int64(tilesPerImage * images), Units: progress.UnitsDefault},
		images:        &progress.Tracker{Message: "images", Total: int64(images), Units: progress.UnitsDefault},
		done:          make(chan struct{}),
	}
	pw.AppendTracker(b.tiles)
	pw.AppendTracker(b.images)

	go func() {
		defer close(b.done)
		pw.Render()
	}()
	return b
}

func (b *Bars) TileComplete() {
	b.tiles.Increment(1)
}

func (b *Bars) ImageComplete() {
	b.images.Increment(1)
}

// Expect resizes both trackers once the number of images is known.
func (b *Bars) Expect(images int) {
	images = max(images, 1)
	b.images.UpdateTotal(int64(images))
	b.tiles.UpdateTotal(int64(b.tilesPerImage * images))
}

// Tiles reports how many tiles have completed.
func (b *Bars) Tiles() int64 {
	return b.tiles.Value()
}

// Images reports how many images have completed.
func (b *Bars) Images() int64 {
	return b.images.Value()
}

// Close marks both trackers done and waits for the final render.
func (b *Bars) Close() {
	b.tiles.MarkAsDone()
	b.images.MarkAsDone()
	<-b.done
}
