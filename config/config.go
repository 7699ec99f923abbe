// Package config loads the migration tool configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFiles are loaded, in order, before the environment is parsed.
var DefaultEnvFiles = []string{".env.local", ".env"} //nolint:gochecknoglobals

// Config holds database, migrations directory and logging settings.
type Config struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Database string `env:"POSTGRES_DB"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// URL, when set, is used verbatim instead of the discrete POSTGRES_* fields.
	URL string `env:"DATABASE_URL"`

	MaxOpenConns   int           `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	IdleTimeout    time.Duration `env:"POSTGRES_IDLE_TIMEOUT" envDefault:"20s"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" envDefault:"10s"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the given dotenv files (DefaultEnvFiles when none are passed)
// and parses the environment into a Config. Missing dotenv files are skipped.
// Variables already present in the environment are never overridden.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}

	for _, file := range envFiles {
		err := godotenv.Load(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// DSN returns the connection string for lib/pq.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(math.Ceil(c.ConnectTimeout.Seconds()))))
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: query.Encode(),
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}

	return u.String()
}

// MigrationsPath resolves MigrationsDir against workDir unless it is already absolute.
func (c Config) MigrationsPath(workDir string) string {
	if filepath.IsAbs(c.MigrationsDir) {
		return c.MigrationsDir
	}
	return filepath.Join(workDir, c.MigrationsDir)
}
