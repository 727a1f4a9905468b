package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

// TileFetcher retrieves one decoded tile.
type TileFetcher interface {
	FetchTile(ctx context.Context, id model.TileID, retries int) (model.DecodedTile, error)
}

// Progress is told each time a tile completes. It must not block.
type Progress interface {
	TileComplete()
}

// Request describes one composite's worth of tiles.
type Request struct {
	Level   model.GridLevel
	Time    time.Time
	Band    model.Band
	Retries int

	// Concurrency caps parallel fetches; 0 means one worker per tile.
	Concurrency int
	// Sequential fetches tiles one at a time, ignoring Concurrency.
	Sequential bool
}

// Coordinator fetches every tile of a grid.
type Coordinator struct {
	fetcher  TileFetcher
	progress Progress
}

// NewCoordinator creates a Coordinator. progress may be nil.
func NewCoordinator(fetcher TileFetcher, progress Progress) *Coordinator {
	return &Coordinator{fetcher: fetcher, progress: progress}
}

// FetchGrid returns all N² tiles of the grid, indexed row-major, or a
// *GridFetchError wrapping the first tile that could not be fetched.
// On failure the remaining fetches are cancelled and no tiles are returned.
func (c *Coordinator) FetchGrid(ctx context.Context, req Request) ([]model.DecodedTile, error) {
	coords := req.Level.Coordinates()
	results := make([]model.DecodedTile, len(coords))

	var err error
	if req.Sequential {
		err = c.fetchSequential(ctx, req, coords, results)
	} else {
		err = c.fetchParallel(ctx, req, coords, results)
	}
	if err != nil {
		return nil, &GridFetchError{Level: req.Level, Time: req.Time, Band: req.Band, Err: err}
	}

	slog.DebugContext(ctx, "grid fetched", "level", int(req.Level), "band", req.Band.String(), "tiles", len(results))
	return results, nil
}

func (c *Coordinator) fetchSequential(ctx context.Context, req Request, coords []model.TileCoordinate, results []model.DecodedTile) error {
	for i, coord := range coords {
		tile, err := c.fetcher.FetchTile(ctx, model.NewTileID(coord, req.Level, req.Time, req.Band), req.Retries)
		if err != nil {
			return err
		}
		results[i] = tile
		c.tileComplete()
	}
	return nil
}

func (c *Coordinator) fetchParallel(ctx context.Context, req Request, coords []model.TileCoordinate, results []model.DecodedTile) error {
	workers := req.Concurrency
	if workers <= 0 || workers > len(coords) {
		workers = len(coords)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, coord := range coords {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			tile, err := c.fetcher.FetchTile(gctx, model.NewTileID(coord, req.Level, req.Time, req.Band), req.Retries)
			if err != nil {
				return err
			}
			// Each worker owns its own slot.
			results[i] = tile
			c.tileComplete()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// Dispatch stops early if the caller cancels; never report a partial grid.
	return ctx.Err()
}

func (c *Coordinator) tileComplete() {
	if c.progress != nil {
		c.progress.TileComplete()
	}
}

// GridFetchError wraps the first tile failure of a composite.
type GridFetchError struct {
	Level model.GridLevel
	Time  time.Time
	Band  model.Band
	Err   error
}

func (e *GridFetchError) Error() string {
	return fmt.Sprintf("fetch %dd %s grid for %s: %v", e.Level, e.Band, e.Time.Format("2006-01-02 15:04"), e.Err)
}

func (e *GridFetchError) Unwrap() error {
	return e.Err
}

// Cancelled reports whether the grid failed because the caller gave up
// rather than because a tile ran out of attempts.
func (e *GridFetchError) Cancelled() bool {
	return errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)
}
