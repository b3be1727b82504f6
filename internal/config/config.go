// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/pipeline"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment variable names.
const (
	EnvProject          = "GCP_PROJECT"
	EnvDataset          = "BQ_DATASET"
	EnvBucket           = "GCS_BUCKET"
	EnvTimeOffset       = "TIME_OFFSET"
	EnvRevenueThreshold = "REVENUE_THRESHOLD_PCT"
	EnvDeepDiveLimit    = "DEEP_DIVE_LIMIT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvPort             = "PORT"
	EnvInputURIs        = "INPUT_URIS"
)

const (
	DefaultDataset          = "purchases"
	DefaultRevenueThreshold = "0.5"
	DefaultDeepDiveLimit    = 20
	DefaultLogLevel         = "info"
	DefaultPort             = "8080"
)

// Config holds every setting shared by the commands.
type Config struct {
	ProjectID string
	DatasetID string
	Bucket    string

	TimeOffset          time.Duration
	RevenueThresholdPct decimal.Decimal
	DeepDiveLimit       int

	LogLevel  string
	Port      string
	InputURIs []string
}

// Load reads an optional .env file from the working directory and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults for unset values.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		ProjectID:           getenv(EnvProject),
		DatasetID:           valueOr(getenv(EnvDataset), DefaultDataset),
		Bucket:              getenv(EnvBucket),
		TimeOffset:          pipeline.DefaultNormalizationOffset,
		RevenueThresholdPct: decimal.RequireFromString(DefaultRevenueThreshold),
		DeepDiveLimit:       DefaultDeepDiveLimit,
		LogLevel:            valueOr(getenv(EnvLogLevel), DefaultLogLevel),
		Port:                valueOr(getenv(EnvPort), DefaultPort),
		InputURIs:           SplitList(getenv(EnvInputURIs)),
	}

	if v := getenv(EnvTimeOffset); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FromEnv: %s: %w", EnvTimeOffset, err)
		}
		cfg.TimeOffset = d
	}
	if v := getenv(EnvRevenueThreshold); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("FromEnv: %s: %w", EnvRevenueThreshold, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("FromEnv: %s must not be negative, got %s", EnvRevenueThreshold, v)
		}
		cfg.RevenueThresholdPct = d
	}
	if v := getenv(EnvDeepDiveLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FromEnv: %s: %w", EnvDeepDiveLimit, err)
		}
		cfg.DeepDiveLimit = n
	}

	return cfg, nil
}

// Settings returns the cleaning settings for the configured offset.
func (c *Config) Settings() pipeline.Settings {
	s := pipeline.DefaultSettings()
	s.NormalizationOffset = c.TimeOffset
	return s
}

// ReportOptions returns report engine options with the configured threshold and limit.
func (c *Config) ReportOptions() reports.Options {
	o := reports.DefaultOptions()
	o.RevenueThresholdPct = c.RevenueThresholdPct
	o.DeepDiveLimit = c.DeepDiveLimit
	return o
}

// RequireProject fails when no GCP project is configured.
func (c *Config) RequireProject() error {
	if c.ProjectID == "" {
		return fmt.Errorf("%s is not set", EnvProject)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
