// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) returns a Config populated with defaults.
//   - Load layers a YAML file and GROWTH_ environment variables on top.
//   - Validate reports every problem wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"time"

	"github.com/selim-create/kg-growth/internal/domain/classify"
)

// Reference data drivers.
const (
	RefDataDriverFS     = "fs"
	RefDataDriverS3     = "s3"
	RefDataDriverMemory = "memory"
)

// History drivers.
const (
	HistoryDriverNone     = "none"
	HistoryDriverMemory   = "memory"
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	RefData        RefDataConfig        `koanf:"refdata"`
	Classification ClassificationConfig `koanf:"classification"`
	RedFlag        RedFlagConfig        `koanf:"redflag"`
	Engine         EngineConfig         `koanf:"engine"`
	History        HistoryConfig        `koanf:"history"`
}

// RefDataConfig locates the WHO LMS tables.
type RefDataConfig struct {
	// Driver is fs, s3 or memory.
	Driver string `koanf:"driver"`

	// Root is the directory read by the fs driver.
	Root string `koanf:"root"`

	// Prefix narrows listing to a sub-path or key prefix.
	Prefix string `koanf:"prefix"`

	// ReloadIntervalSeconds triggers periodic reloads; 0 disables them.
	ReloadIntervalSeconds int `koanf:"reload_interval"`

	S3 S3Config `koanf:"s3"`
}

// S3Config configures the s3 reference driver.
type S3Config struct {
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	PathStyle       bool   `koanf:"path_style"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

// ClassificationConfig holds the percentile cut-offs of the category bands.
type ClassificationConfig struct {
	SeverelyLow  float64 `koanf:"severely_low"`
	Low          float64 `koanf:"low"`
	High         float64 `koanf:"high"`
	SeverelyHigh float64 `koanf:"severely_high"`
}

// RedFlagConfig controls the optional warning band.
type RedFlagConfig struct {
	WarningEnabled bool    `koanf:"warning_enabled"`
	WarningLow     float64 `koanf:"warning_low"`
	WarningHigh    float64 `koanf:"warning_high"`
}

// EngineConfig tunes the assessment engine.
type EngineConfig struct {
	// ExtendedZ applies the WHO adjustment beyond |z| = 3.
	ExtendedZ bool `koanf:"extended_z"`

	// IncludeWeightForLength adds a weight-for-length slot to visits that
	// carry both weight and height.
	IncludeWeightForLength bool `koanf:"include_weight_for_length"`

	// MaxBatchVisits caps POST /visits/batch.
	MaxBatchVisits int `koanf:"max_batch_visits"`
}

// HistoryConfig configures assessment history persistence.
type HistoryConfig struct {
	// Driver is none, memory, sqlite or postgres.
	Driver string `koanf:"driver"`

	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`

	// QueueSize bounds the in-memory history queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of history writers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the visit-id deduplication window.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxListLimit caps GET /children/{id}/history?limit.
	MaxListLimit int `koanf:"max_list_limit"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		RefData: RefDataConfig{
			Driver: RefDataDriverFS,
			Root:   "./data/who",
			S3:     S3Config{Region: "us-east-1"},
		},
		Classification: ClassificationConfig{
			SeverelyLow:  classify.DefaultSeverelyLow,
			Low:          classify.DefaultLow,
			High:         classify.DefaultHigh,
			SeverelyHigh: classify.DefaultSeverelyHigh,
		},
		RedFlag: RedFlagConfig{
			WarningLow:  classify.DefaultWarningLow,
			WarningHigh: classify.DefaultWarningHigh,
		},
		Engine: EngineConfig{
			ExtendedZ:              true,
			IncludeWeightForLength: true,
			MaxBatchVisits:         500,
		},
		History: HistoryConfig{
			Driver:       HistoryDriverMemory,
			SQLitePath:   "growth-history.db",
			QueueSize:    10_000,
			WorkerCount:  runtime.NumCPU(),
			DedupeSize:   100_000,
			MaxListLimit: 500,
		},
	}
}

// Thresholds returns the classification bands.
func (c *Config) Thresholds() classify.Thresholds {
	return classify.Thresholds{
		SeverelyLow:  c.Classification.SeverelyLow,
		Low:          c.Classification.Low,
		High:         c.Classification.High,
		SeverelyHigh: c.Classification.SeverelyHigh,
	}
}

// Policy returns the red-flag policy.
func (c *Config) Policy() classify.Policy {
	return classify.Policy{
		WarningEnabled: c.RedFlag.WarningEnabled,
		WarningLow:     c.RedFlag.WarningLow,
		WarningHigh:    c.RedFlag.WarningHigh,
	}
}

// ReloadInterval returns the reference reload period; zero means never.
func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.RefData.ReloadIntervalSeconds) * time.Second
}
