package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	SinkFile  = "file"
	SinkMinIO = "minio"

	CatalogNone       = ""
	CatalogPostgres   = "postgres"
	CatalogClickHouse = "clickhouse"
)

// Config holds application configuration for both the CLI and the server.
type Config struct {
	BaseURL     string        `env:"HIMAWARI_BASE_URL" envDefault:"https://himawari8-dl.nict.go.jp/himawari8/img"`
	HTTPTimeout time.Duration `env:"HIMAWARI_HTTP_TIMEOUT" envDefault:"30s"`
	UserAgent   string        `env:"HIMAWARI_USER_AGENT" envDefault:"jackfruit-himawari/1.0"`
	Sink        string        `env:"HIMAWARI_SINK" envDefault:"file"`
	OutputDir   string        `env:"HIMAWARI_OUTPUT_DIR" envDefault:"."`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"`

	CatalogDriver      string `env:"CATALOG_DRIVER"`
	PostgresDSN        string `env:"CATALOG_POSTGRES_DSN"`
	ClickHouseHost     string `env:"CLICKHOUSE_HOST"`
	ClickHousePort     string `env:"CLICKHOUSE_PORT" envDefault:"9000"`
	ClickHouseUser     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD"`
	ClickHouseDatabase string `env:"CLICKHOUSE_DATABASE" envDefault:"jackfruit"`

	Port string `env:"PORT" envDefault:"8080"`
}

type ErrMissingRequiredEnvVar struct {
	Name string
}

func (e *ErrMissingRequiredEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %q is not set", e.Name)
}

// ErrInvalidEnvVar reports a variable set to a value the program cannot use.
type ErrInvalidEnvVar struct {
	Name  string
	Value string
}

func (e *ErrInvalidEnvVar) Error() string {
	return fmt.Sprintf("environment variable %q has unsupported value %q", e.Name, e.Value)
}

// Load reads configuration from environment variables.
// Variables only become required once the sink or catalog that needs them
// is selected.
func Load() (*Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch config.Sink {
	case SinkFile:
	case SinkMinIO:
		required := []struct{ name, value string }{
			{"MINIO_ENDPOINT", config.MinIOEndpoint},
			{"MINIO_ACCESS_KEY", config.MinIOAccessKey},
			{"MINIO_SECRET_KEY", config.MinIOSecretKey},
			{"MINIO_BUCKET", config.MinIOBucket},
		}
		for _, r := range required {
			if r.value == "" {
				return nil, &ErrMissingRequiredEnvVar{Name: r.name}
			}
		}
	default:
		return nil, &ErrInvalidEnvVar{Name: "HIMAWARI_SINK", Value: config.Sink}
	}

	switch config.CatalogDriver {
	case CatalogNone:
	case CatalogPostgres:
		if config.PostgresDSN == "" {
			return nil, &ErrMissingRequiredEnvVar{Name: "CATALOG_POSTGRES_DSN"}
		}
	case CatalogClickHouse:
		if config.ClickHouseHost == "" {
			return nil, &ErrMissingRequiredEnvVar{Name: "CLICKHOUSE_HOST"}
		}
	default:
		return nil, &ErrInvalidEnvVar{Name: "CATALOG_DRIVER", Value: config.CatalogDriver}
	}

	return &config, nil
}
