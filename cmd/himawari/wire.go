package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/addressing"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/catalog"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/clickhouse"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/codec"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/config"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/dates"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/exitcode"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/grid"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/progress"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/retry"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/series"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/storage"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/tiles"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/transport"
)

// setupError is a failure to reach a dependency before any work started.
type setupError struct {
	code int
	err  error
}

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// wireServices builds the production pipeline from the environment.
func wireServices(ctx context.Context, o *cliOptions, stderr io.Writer) (*app, error) {
	// Ensure environment variables are loaded
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	runID := model.RunID(o.runID)
	if runID == "" {
		if runID, err = model.NewRunID(); err != nil {
			return nil, err
		}
	}

	var closers []func()
	a := &app{close: func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}}

	client := transport.NewClient(cfg.HTTPTimeout, cfg.UserAgent)
	closers = append(closers, client.Close)

	scheme := addressing.NewScheme(cfg.BaseURL)
	policy := retry.Policy{Attempts: o.opts.Retries}
	png := codec.NewPNG()

	resolver := dates.NewResolver(client, dates.DateParser{}, scheme.LatestURL(), policy)
	fetcher := tiles.NewFetcher(client, png, scheme, policy)

	var sink progress.Sink = progress.Nop{}
	if o.progress {
		sink = progress.NewBars(stderr, o.opts.Level.Tiles(), 1)
	}
	closers = append(closers, sink.Close)

	objectStorage, err := newObjectStorage(ctx, cfg, o)
	if err != nil {
		a.close()
		return nil, &setupError{code: exitcode.StorageError, err: err}
	}

	svc := series.NewService(resolver, grid.NewCoordinator(fetcher, sink), png, objectStorage, runID).
		WithProgress(sink)

	store, closeStore, err := newCatalog(ctx, cfg)
	if err != nil {
		a.close()
		return nil, &setupError{code: exitcode.StorageError, err: err}
	}
	if store != nil {
		svc.WithCatalog(store)
		closers = append(closers, closeStore)
	}

	slog.Info("pipeline ready", "run_id", runID, "sink", cfg.Sink, "catalog", cfg.CatalogDriver, "base_url", scheme.BaseURL)

	a.pipeline = svc
	a.latest = resolver
	return a, nil
}

func newObjectStorage(ctx context.Context, cfg *config.Config, o *cliOptions) (series.ObjectStorage, error) {
	switch cfg.Sink {
	case config.SinkMinIO:
		// Initialize MinIO client
		minioClient, err := storage.NewMinIOClient(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize minio client: %w", err)
		}
		return minioClient, nil
	default:
		dir := cfg.OutputDir
		if o.output != "" {
			dir = o.output
		}
		return storage.NewFileStore(dir), nil
	}
}

// newCatalog opens the configured catalog, or returns a nil store when none is.
func newCatalog(ctx context.Context, cfg *config.Config) (catalog.Store, func(), error) {
	switch cfg.CatalogDriver {
	case config.CatalogPostgres:
		pg, err := catalog.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.CatalogClickHouse:
		ch, err := clickhouse.NewClient(clickhouse.Config{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			User:     cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
			Database: cfg.ClickHouseDatabase,
		}, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		if err := ch.Migrate(ctx); err != nil {
			_ = ch.Close()
			return nil, nil, err
		}
		return ch, func() { _ = ch.Close() }, nil
	default:
		return nil, nil, nil
	}
}
