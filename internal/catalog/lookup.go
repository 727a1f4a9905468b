package catalog

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

type ErrCompositeNotFound struct {
	Band  model.Band
	Level model.GridLevel
}

func (e *ErrCompositeNotFound) Error() string {
	return fmt.Sprintf("no %s composite recorded at level %dd", e.Band, e.Level)
}

func (e *ErrCompositeNotFound) Is(target error) bool {
	return target == ErrRecordNotFound
}

// Lookup answers "what is the newest composite" for several bands at once.
type Lookup struct {
	store Store
}

func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// LatestForBands returns the newest record of each band at level, in the
// order the bands were given. Any band without a record fails the lookup.
func (l *Lookup) LatestForBands(ctx context.Context, level model.GridLevel, bands []model.Band) ([]Record, error) {
	results := make([]Record, len(bands))
	g, ctx := errgroup.WithContext(ctx)

	for i, band := range bands {
		g.Go(func() error {
			record, err := l.latest(ctx, band, level)
			if err != nil {
				return err
			}
			results[i] = *record

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (l *Lookup) latest(ctx context.Context, band model.Band, level model.GridLevel) (*Record, error) {
	record, err := l.store.Latest(ctx, band, level)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, &ErrCompositeNotFound{Band: band, Level: level}
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s composite: %w", band, err)
	}

	return record, nil
}
