package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/catalog"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
)

// schema keeps one row per saved record, like the Postgres store: the id in
// the sort key stops rebuilds of the same image from being merged away.
const schema = `
CREATE TABLE IF NOT EXISTS composites (
	id         UUID,
	run_id     String,
	timestamp  DateTime('UTC'),
	band       LowCardinality(String),
	level      Int32,
	scale      Int32,
	object_key String,
	created_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (band, level, timestamp, id)
`

// Client implements catalog.Store on ClickHouse.
type Client struct {
	conn driver.Conn
}

var _ catalog.Store = (*Client)(nil)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Logger: logger,
		Settings: clickhouse.Settings{
			"max_execution_time": 15,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &Client{conn: conn}, nil
}

func (c *Client) Migrate(ctx context.Context) error {
	if err := c.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create composites table: %w", err)
	}
	return nil
}

func (c *Client) Save(ctx context.Context, r catalog.Record) error {
	err := c.conn.Exec(ctx, `
		INSERT INTO composites (id, run_id, timestamp, band, level, scale, object_key, created_at)
		VALUES (@id, @run_id, @timestamp, @band, @level, @scale, @object_key, @created_at)
	`,
		clickhouse.Named("id", r.ID),
		clickhouse.Named("run_id", r.RunID.String()),
		clickhouse.Named("timestamp", r.Timestamp),
		clickhouse.Named("band", r.Band.String()),
		clickhouse.Named("level", int32(r.Level)),
		clickhouse.Named("scale", int32(r.Scale)),
		clickhouse.Named("object_key", r.Key),
		clickhouse.Named("created_at", r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert composite %s: %w", r.Key, err)
	}
	return nil
}

func (c *Client) Latest(ctx context.Context, band model.Band, level model.GridLevel) (*catalog.Record, error) {
	var (
		result catalog.Record
		runID  string
		bandS  string
		lvl    int32
		scale  int32
	)

	err := c.conn.QueryRow(
		ctx,
		`
		SELECT id, run_id, timestamp, band, level, scale, object_key, created_at
		FROM composites
		WHERE band = @band AND level = @level
		ORDER BY timestamp DESC, created_at DESC
		LIMIT 1
		`,
		clickhouse.Named("band", band.String()),
		clickhouse.Named("level", int32(level)),
	).Scan(&result.ID, &runID, &result.Timestamp, &bandS, &lvl, &scale, &result.Key, &result.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrRecordNotFound
	}

	if err != nil {
		return nil, err
	}

	b, err := model.ParseBand(bandS)
	if err != nil {
		return nil, fmt.Errorf("stored band: %w", err)
	}
	result.RunID = model.RunID(runID)
	result.Band = b
	result.Level = model.GridLevel(lvl)
	result.Scale = int(scale)

	return &result, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
