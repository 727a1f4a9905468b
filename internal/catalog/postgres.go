package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS composites (
	id         UUID PRIMARY KEY,
	run_id     UUID NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	band       TEXT NOT NULL,
	level      INTEGER NOT NULL,
	scale      INTEGER NOT NULL,
	object_key TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS composites_band_level_timestamp ON composites (band, level, timestamp DESC);
`

// Postgres implements Store on a composites table.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects with the lib/pq driver and makes sure the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := NewPostgres(db)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create composites table: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, r Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO composites (id, run_id, timestamp, band, level, scale, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.RunID.String(), r.Timestamp, r.Band.String(), int(r.Level), r.Scale, r.Key, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert composite %s: %w", r.Key, err)
	}
	return nil
}

func (p *Postgres) Latest(ctx context.Context, band model.Band, level model.GridLevel) (*Record, error) {
	var (
		r     Record
		runID string
		bandS string
		lvl   int
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, run_id, timestamp, band, level, scale, object_key, created_at
		FROM composites
		WHERE band = $1 AND level = $2
		ORDER BY timestamp DESC, created_at DESC
		LIMIT 1`,
		band.String(), int(level),
	).Scan(&r.ID, &runID, &r.Timestamp, &bandS, &lvl, &r.Scale, &r.Key, &r.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return decode(r, runID, bandS, lvl)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// decode restores the typed fields of a scanned row.
func decode(r Record, runID, band string, level int) (*Record, error) {
	b, err := model.ParseBand(band)
	if err != nil {
		return nil, fmt.Errorf("stored band: %w", err)
	}
	r.RunID = model.RunID(runID)
	r.Band = b
	r.Level = model.GridLevel(level)
	r.Timestamp = r.Timestamp.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
