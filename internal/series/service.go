// Package series builds composites: one for a single timestamp, or one per
// publication step across a range.
package series

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/addressing"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/catalog"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/compose"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/dates"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/grid"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/storage"
)

// DateResolver turns date specs into timestamps.
type DateResolver interface {
	Resolve(ctx context.Context, spec dates.Spec) (time.Time, error)
	SampleRange(ctx context.Context, start, finish dates.Spec, increment time.Duration) (iter.Seq[time.Time], error)
}

// GridFetcher retrieves every tile of one grid.
type GridFetcher interface {
	FetchGrid(ctx context.Context, req grid.Request) ([]model.DecodedTile, error)
}

// Encoder serialises a finished composite.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
}

// ObjectStorage writes data streams to object storage.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data io.Reader) error
}

// Catalog records persisted composites.
type Catalog interface {
	Save(ctx context.Context, r catalog.Record) error
}

// Progress is told when a composite is finished.
type Progress interface {
	ImageComplete()
}

// Planner is implemented by progress sinks that want to know how many
// images a range will produce before the first one starts.
type Planner interface {
	Expect(images int)
}

// Result is one built composite. When saved, Composite.Image is nil and Key
// names the stored object.
type Result struct {
	Composite *model.Composite
	Key       string
}

// Service orchestrates the pipeline: resolve, fetch, compose, then
// optionally store.
type Service struct {
	resolver      DateResolver
	grid          GridFetcher
	encoder       Encoder
	objectStorage ObjectStorage
	catalog       Catalog
	progress      Progress
	runID         model.RunID
}

// NewService wires the pipeline. objectStorage may be nil if nothing is saved.
func NewService(resolver DateResolver, grid GridFetcher, encoder Encoder, objectStorage ObjectStorage, runID model.RunID) *Service {
	return &Service{
		resolver:      resolver,
		grid:          grid,
		encoder:       encoder,
		objectStorage: objectStorage,
		runID:         runID,
	}
}

// WithCatalog records every saved composite in c.
func (s *Service) WithCatalog(c Catalog) *Service {
	s.catalog = c
	return s
}

// WithProgress reports finished composites to p.
func (s *Service) WithProgress(p Progress) *Service {
	s.progress = p
	return s
}

// BuildOne builds the composite for the timestamp date refers to.
func (s *Service) BuildOne(ctx context.Context, date dates.Spec, opts Options) (*Result, error) {
	if err := s.check(opts); err != nil {
		return nil, err
	}

	ts, err := s.resolver.Resolve(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("resolve date: %w", err)
	}

	if p, ok := s.progress.(Planner); ok {
		p.Expect(1)
	}
	return s.build(ctx, ts, opts)
}

// BuildRange builds one composite per step between start and finish, one
// after another. The first failure aborts the rest of the series.
func (s *Service) BuildRange(ctx context.Context, start, finish dates.Spec, opts Options) ([]*Result, error) {
	if err := s.check(opts); err != nil {
		return nil, err
	}

	steps, err := s.resolver.SampleRange(ctx, start, finish, opts.Increment)
	if err != nil {
		return nil, fmt.Errorf("sample range: %w", err)
	}

	total := 0
	for range steps {
		total++
	}
	if p, ok := s.progress.(Planner); ok {
		p.Expect(total)
	}
	slog.InfoContext(ctx, "series started", "images", total, "level", int(opts.Level), "band", opts.Band.String(), "run_id", s.runID)

	results := make([]*Result, 0, total)
	for ts := range steps {
		r, err := s.build(ctx, ts, opts)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", ts.Format(time.RFC3339), err)
		}
		results = append(results, r)
	}

	slog.InfoContext(ctx, "series complete", "images", len(results), "run_id", s.runID)
	return results, nil
}

func (s *Service) check(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if !opts.Save {
		return nil
	}
	if s.objectStorage == nil {
		return fmt.Errorf("save requested but no object storage configured")
	}
	return s.runID.Validate()
}

func (s *Service) build(ctx context.Context, ts time.Time, opts Options) (*Result, error) {
	// Tiles only exist on the publication cadence, whatever the series step.
	ts = addressing.Align(ts, addressing.DefaultIncrement)

	tiles, err := s.grid.FetchGrid(ctx, grid.Request{
		Level:       opts.Level,
		Time:        ts,
		Band:        opts.Band,
		Retries:     opts.Retries,
		Concurrency: opts.Concurrency,
		Sequential:  opts.Sequential,
	})
	if err != nil {
		return nil, err
	}

	img, err := compose.Compose(opts.Level, opts.Scale, opts.Band, tiles)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	composite := &model.Composite{Time: ts, Level: opts.Level, Band: opts.Band, Scale: opts.Scale, Image: img}
	result := &Result{Composite: composite}

	if opts.Save {
		key, err := s.persist(ctx, composite, opts)
		if err != nil {
			return nil, err
		}
		result.Key = key
		composite.Image = nil
	}

	if s.progress != nil {
		s.progress.ImageComplete()
	}
	slog.DebugContext(ctx, "composite built", "timestamp", ts, "level", int(opts.Level), "band", opts.Band.String(), "key", result.Key)
	return result, nil
}

func (s *Service) persist(ctx context.Context, c *model.Composite, opts Options) (string, error) {
	key := storage.ObjectKey{
		Band:  c.Band,
		Level: c.Level,
		Date:  c.Time,
		Name:  opts.FileName(c.Time),
	}.Key()

	var buf bytes.Buffer
	if err := s.encoder.Encode(&buf, c.Image); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	if err := s.objectStorage.Put(ctx, key, &buf); err != nil {
		return "", &PersistError{Key: key, Err: fmt.Errorf("store: %w", err)}
	}

	if s.catalog != nil {
		record, err := catalog.NewRecord(s.runID, c, key)
		if err != nil {
			return "", &PersistError{Key: key, Err: fmt.Errorf("catalog: %w", err)}
		}
		if err := s.catalog.Save(ctx, record); err != nil {
			return "", &PersistError{Key: key, Err: fmt.Errorf("catalog: %w", err)}
		}
	}

	slog.InfoContext(ctx, "composite saved", "key", key, "run_id", s.runID)
	return key, nil
}

// PersistError reports a composite that was built but could not be stored
// or recorded.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
