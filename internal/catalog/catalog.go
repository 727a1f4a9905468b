// Package catalog records every composite persisted by a run so the newest
// one per band and level can be found without listing the object store.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

var ErrRecordNotFound = errors.New("composite record not found")

// Record describes one persisted composite.
type Record struct {
	ID        uuid.UUID
	RunID     model.RunID
	Timestamp time.Time
	Band      model.Band
	Level     model.GridLevel
	Scale     int
	Key       string
	CreatedAt time.Time
}

// NewRecord fills in a fresh UUIDv7 and the creation time.
func NewRecord(runID model.RunID, c *model.Composite, key string) (Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:        id,
		RunID:     runID,
		Timestamp: c.Time.UTC(),
		Band:      c.Band,
		Level:     c.Level,
		Scale:     c.Scale,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type Store interface {
	Save(ctx context.Context, r Record) error
	// Latest returns the record with the newest Timestamp for band and level,
	// or ErrRecordNotFound.
	Latest(ctx context.Context, band model.Band, level model.GridLevel) (*Record, error)
}
