package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"climate-api/pkg/database"
)

// Dataset sources
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Key extraction modes
const (
	KeyModePrefix  = "prefix"
	KeyModeCharset = "charset"
)

// Config is the full application configuration
type Config struct {
	Server   ServerConfig
	Dataset  DatasetConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	KeyMode      string
}

// DatasetConfig selects where the climate records are loaded from at startup
type DatasetConfig struct {
	Source string
	Path   string
	Format string
}

// DatabaseConfig configures the PostgreSQL connection pool
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Postgres converts the settings to the pkg/database form
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string
}

// LoadConfig reads configuration from the environment. Variables from a .env
// file in the working directory are applied first without overriding the
// real environment; a missing .env file is not an error.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv
func FromEnv(getenv func(string) string) (*Config, error) {
	l := &loader{getenv: getenv}

	cfg := &Config{
		Server: ServerConfig{
			Host:         l.str("SERVER_HOST", "localhost"),
			Port:         l.int("SERVER_PORT", 3000),
			ReadTimeout:  l.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: l.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  l.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			KeyMode:      strings.ToLower(l.str("KEY_MODE", KeyModePrefix)),
		},
		Dataset: DatasetConfig{
			Source: strings.ToLower(l.str("DATASET_SOURCE", SourceFile)),
			Path:   l.str("DATASET_PATH", "climate.json"),
			Format: strings.ToLower(l.str("DATASET_FORMAT", "auto")),
		},
		Database: DatabaseConfig{
			Host:            l.str("DB_HOST", "localhost"),
			Port:            l.int("DB_PORT", 5432),
			User:            l.str("DB_USER", "postgres"),
			Password:        l.str("DB_PASSWORD", ""),
			Database:        l.str("DB_NAME", "climate"),
			SSLMode:         l.str("DB_SSLMODE", "disable"),
			MaxOpenConns:    l.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    l.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: l.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: l.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(l.str("LOG_LEVEL", "info")),
		},
	}

	if l.err != nil {
		return nil, l.err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}

	switch c.Server.KeyMode {
	case KeyModePrefix, KeyModeCharset:
	default:
		return fmt.Errorf("unknown KEY_MODE %q (want %q or %q)", c.Server.KeyMode, KeyModePrefix, KeyModeCharset)
	}

	switch c.Dataset.Source {
	case SourceFile:
		if c.Dataset.Path == "" {
			return errors.New("DATASET_PATH is required when DATASET_SOURCE=file")
		}
	case SourcePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("DB_HOST and DB_NAME are required when DATASET_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("unknown DATASET_SOURCE %q", c.Dataset.Source)
	}

	switch c.Dataset.Format {
	case "auto", "json", "csv":
	default:
		return fmt.Errorf("unknown DATASET_FORMAT %q", c.Dataset.Format)
	}

	return nil
}

// loader remembers the first malformed variable
type loader struct {
	getenv func(string) string
	err    error
}

func (l *loader) str(key, def string) string {
	if v := strings.TrimSpace(l.getenv(key)); v != "" {
		return v
	}
	return def
}

func (l *loader) int(key string, def int) int {
	v := strings.TrimSpace(l.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return n
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(l.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return d
}

func (l *loader) fail(key, value string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
}
