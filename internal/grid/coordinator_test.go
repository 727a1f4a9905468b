package grid

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

type stubFetcher struct {
	mu       sync.Mutex
	requests map[model.TileID]int
	fail     map[model.TileCoordinate]bool
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *stubFetcher) FetchTile(ctx context.Context, id model.TileID, retries int) (model.DecodedTile, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	s.mu.Lock()
	if s.requests == nil {
		s.requests = make(map[model.TileID]int)
	}
	s.requests[id]++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return model.DecodedTile{}, ctx.Err()
		}
	}

	if s.fail[id.Coord] {
		return model.DecodedTile{}, errors.New("tile exhausted its retries")
	}
	return model.DecodedTile{Coord: id.Coord, Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}, nil
}

type countingProgress struct {
	tiles atomic.Int32
}

func (p *countingProgress) TileComplete() { p.tiles.Add(1) }

var testTime = time.Date(2021, 1, 1, 0, 10, 0, 0, time.UTC)

func assertComplete(t *testing.T, level model.GridLevel, tiles []model.DecodedTile) {
	t.Helper()
	if len(tiles) != level.Tiles() {
		t.Fatalf("got %d tiles, want %d", len(tiles), level.Tiles())
	}
	seen := make(map[model.TileCoordinate]bool)
	for _, tile := range tiles {
		if tile.Image == nil {
			t.Fatalf("tile %v has no image", tile.Coord)
		}
		if seen[tile.Coord] {
			t.Fatalf("duplicate tile %v", tile.Coord)
		}
		seen[tile.Coord] = true
	}
	for y := 0; y < int(level); y++ {
		for x := 0; x < int(level); x++ {
			if !seen[model.TileCoordinate{X: x, Y: y}] {
				t.Fatalf("missing tile (%d, %d)", x, y)
			}
		}
	}
}

func TestCoordinator_FetchGrid_Complete(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "parallel default workers", req: Request{Level: 4}},
		{name: "parallel capped", req: Request{Level: 8, Concurrency: 3}},
		{name: "sequential", req: Request{Level: 2, Sequential: true}},
		{name: "single tile", req: Request{Level: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{}
			progress := &countingProgress{}
			tt.req.Time = testTime
			tt.req.Retries = 3

			tiles, err := NewCoordinator(fetcher, progress).FetchGrid(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("FetchGrid() error = %v", err)
			}
			assertComplete(t, tt.req.Level, tiles)

			if int(progress.tiles.Load()) != tt.req.Level.Tiles() {
				t.Errorf("progress saw %d tiles, want %d", progress.tiles.Load(), tt.req.Level.Tiles())
			}
			for id, n := range fetcher.requests {
				if n != 1 {
					t.Errorf("tile %v requested %d times", id, n)
				}
			}
		})
	}
}

func TestCoordinator_FetchGrid_ConcurrencyCap(t *testing.T) {
	fetcher := &stubFetcher{delay: 5 * time.Millisecond}
	req := Request{Level: 4, Time: testTime, Retries: 1, Concurrency: 2}

	if _, err := NewCoordinator(fetcher, nil).FetchGrid(context.Background(), req); err != nil {
		t.Fatalf("FetchGrid() error = %v", err)
	}
	if got := fetcher.maxInFlight.Load(); got > 2 {
		t.Errorf("observed %d concurrent fetches, cap was 2", got)
	}
}

func TestCoordinator_FetchGrid_Sequential(t *testing.T) {
	fetcher := &stubFetcher{delay: time.Millisecond}
	req := Request{Level: 2, Time: testTime, Retries: 1, Sequential: true, Concurrency: 8}

	if _, err := NewCoordinator(fetcher, nil).FetchGrid(context.Background(), req); err != nil {
		t.Fatalf("FetchGrid() error = %v", err)
	}
	if got := fetcher.maxInFlight.Load(); got != 1 {
		t.Errorf("sequential mode ran %d fetches at once", got)
	}
}

func TestCoordinator_FetchGrid_FirstFailure(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		fetcher := &stubFetcher{fail: map[model.TileCoordinate]bool{{X: 2, Y: 1}: true}}
		req := Request{Level: 4, Time: testTime, Band: model.Spectral(13), Retries: 3, Sequential: sequential}

		tiles, err := NewCoordinator(fetcher, nil).FetchGrid(context.Background(), req)

		var gridErr *GridFetchError
		if !errors.As(err, &gridErr) {
			t.Fatalf("sequential=%v: expected GridFetchError, got %v", sequential, err)
		}
		if tiles != nil {
			t.Errorf("sequential=%v: partial grid returned alongside error", sequential)
		}
		if gridErr.Level != 4 || gridErr.Band != model.Spectral(13) {
			t.Errorf("GridFetchError carries wrong request: %+v", gridErr)
		}
		if gridErr.Cancelled() {
			t.Errorf("tile failure reported as cancellation")
		}
	}
}

func TestCoordinator_FetchGrid_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &stubFetcher{delay: time.Second}
	tiles, err := NewCoordinator(fetcher, nil).FetchGrid(ctx, Request{Level: 2, Time: testTime, Retries: 1})

	var gridErr *GridFetchError
	if !errors.As(err, &gridErr) {
		t.Fatalf("expected GridFetchError, got %v", err)
	}
	if !gridErr.Cancelled() {
		t.Errorf("expected cancellation, got %v", gridErr.Err)
	}
	if tiles != nil {
		t.Error("tiles returned for cancelled grid")
	}
}
