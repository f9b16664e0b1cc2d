// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first (if present) with
// github.com/joho/godotenv. Variables already set in the real environment
// win over the file, so production never depends on a stray .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MinSecretLength is the shortest JWT_SECRET accepted. HS256 keys shorter
// than this are guessable.
const MinSecretLength = 16

// Config is everything the server needs to start.
type Config struct {
	Port            int
	DBDriver        string
	DBPath          string
	DatabaseURL     string
	JWTSecret       string
	TokenTTL        time.Duration
	BcryptCost      int
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads envFiles (default ".env") into the process environment, then
// builds a Config from it. Missing files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment and validates it.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:            intVar("PORT", 8080, &errs),
		DBDriver:        strings.ToLower(stringVar("DB_DRIVER", DriverSQLite)),
		DBPath:          stringVar("DB_PATH", "data/todos.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        time.Duration(intVar("TOKEN_TTL_MINUTES", 20, &errs)) * time.Minute,
		BcryptCost:      intVar("BCRYPT_COST", 12, &errs),
		ShutdownTimeout: time.Duration(intVar("SHUTDOWN_TIMEOUT_SEC", 30, &errs)) * time.Second,
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(stringVar("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port))
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL_MINUTES must be positive"))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT_SEC must be positive"))
	}

	if len(cfg.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be set and at least %d characters", MinSecretLength))
	}

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, cfg.DBDriver))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func stringVar(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// intVar parses an integer variable, recording a parse failure in errs.
func intVar(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}
