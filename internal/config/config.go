// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/liamcoop/formrules/internal/logger"
)

// Config holds the settings shared by the binaries
type Config struct {
	Port string

	// DatabaseURL enables the PostgreSQL oracle when set
	DatabaseURL string

	// OracleURL points the engine at a remote oracle; it takes precedence
	// over DatabaseURL for SQL conditions
	OracleURL     string
	OracleTimeout time.Duration

	StatementTimeout time.Duration

	LogLevel        slog.Level
	ErrorSampleRate int
	OTELEnabled     bool
	OTELServiceName string
}

// Load reads the configuration using os.Getenv
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv. All problems are reported together.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:             "8080",
		OracleTimeout:    5 * time.Second,
		StatementTimeout: 2 * time.Second,
		LogLevel:         slog.LevelInfo,
		ErrorSampleRate:  100,
		OTELServiceName:  "formrules",
	}
	var errs []error

	if v := getenv("PORT"); v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			errs = append(errs, fmt.Errorf("PORT: %q is not a port number", v))
		} else {
			cfg.Port = v
		}
	}

	cfg.DatabaseURL = getenv("DATABASE_URL")
	cfg.OracleURL = getenv("ORACLE_URL")

	if v := getenv("ORACLE_TIMEOUT"); v != "" {
		d, err := parsePositiveDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORACLE_TIMEOUT: %w", err))
		} else {
			cfg.OracleTimeout = d
		}
	}

	if v := getenv("SQL_STATEMENT_TIMEOUT"); v != "" {
		d, err := parsePositiveDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SQL_STATEMENT_TIMEOUT: %w", err))
		} else {
			cfg.StatementTimeout = d
		}
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		level, err := logger.ParseLevel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
		cfg.LogLevel = level
	}

	if v := getenv("ERROR_SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate < 1 {
			errs = append(errs, fmt.Errorf("ERROR_SAMPLE_RATE: %q must be a positive integer", v))
		} else {
			cfg.ErrorSampleRate = rate
		}
	}

	cfg.OTELEnabled = strings.EqualFold(getenv("OTEL_ENABLED"), "true")
	if v := getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.OTELServiceName = v
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoggerOptions maps the logging settings onto logger.Setup
func (c Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:       c.LogLevel,
		SampleRate:  c.ErrorSampleRate,
		OTELEnabled: c.OTELEnabled,
		ServiceName: c.OTELServiceName,
	}
}

func parsePositiveDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%q must be positive", v)
	}
	return d, nil
}
