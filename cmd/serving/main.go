package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/addressing"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/api"
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
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/tiles"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/transport"
)

func main() {
	// Initialize structured logger (JSON to stdout)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(exitcode.ConfigError)
	}

	runID, err := model.NewRunID()
	if err != nil {
		slog.Error("generate run id", "error", err)
		os.Exit(exitcode.ApplicationError)
	}

	client := transport.NewClient(cfg.HTTPTimeout, cfg.UserAgent)
	defer client.Close()

	scheme := addressing.NewScheme(cfg.BaseURL)
	policy := retry.Policy{Attempts: retry.DefaultAttempts}
	png := codec.NewPNG()

	resolver := dates.NewResolver(client, dates.DateParser{}, scheme.LatestURL(), policy)
	fetcher := tiles.NewFetcher(client, png, scheme, policy)
	coordinator := grid.NewCoordinator(fetcher, progress.Nop{})

	// Composites are streamed back, never stored
	svc := series.NewService(resolver, coordinator, png, nil, runID)

	lookup, closeCatalog, err := openLookup(context.Background(), cfg)
	if err != nil {
		slog.Error("catalog error", "error", err, "driver", cfg.CatalogDriver)
		os.Exit(exitcode.StorageError)
	}
	defer closeCatalog()

	// Setup HTTP routes
	mux := http.NewServeMux()
	var latest api.LatestLookup
	if lookup != nil {
		latest = lookup
	}
	api.NewHandler(svc, png, latest).RegisterRoutes(mux)

	// Create server
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		// A composite at level 20 is 400 tile downloads
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server", "port", cfg.Port, "run_id", runID, "catalog", cfg.CatalogDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(exitcode.ApplicationError)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(exitcode.ApplicationError)
	}

	slog.Info("server stopped")
}

// openLookup connects to the configured catalog. Without one the lookup is
// nil and the latest-composites route stays unregistered.
func openLookup(ctx context.Context, cfg *config.Config) (*catalog.Lookup, func(), error) {
	switch cfg.CatalogDriver {
	case config.CatalogPostgres:
		pg, err := catalog.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewLookup(pg), func() { _ = pg.Close() }, nil
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
		return catalog.NewLookup(ch), func() { _ = ch.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
