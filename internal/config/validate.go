package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Addr == "" {
		add("addr must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		add("log_format must be text or json, got %q", c.LogFormat)
	}

	switch c.RefData.Driver {
	case RefDataDriverFS:
		if c.RefData.Root == "" {
			add("refdata.root must be set for the fs driver")
		}
	case RefDataDriverS3:
		if c.RefData.S3.Bucket == "" {
			add("refdata.s3.bucket must be set for the s3 driver")
		}
	case RefDataDriverMemory:
		add("refdata.driver memory is only available to embedded services; use fs or s3")
	default:
		add("unknown refdata.driver %q", c.RefData.Driver)
	}
	if c.RefData.ReloadIntervalSeconds < 0 {
		add("refdata.reload_interval must not be negative")
	}

	t := c.Thresholds()
	if err := t.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: classification: %w", ErrInvalidConfig, err))
	} else if err := c.Policy().Validate(t); err != nil {
		errs = append(errs, fmt.Errorf("%w: redflag: %w", ErrInvalidConfig, err))
	}

	if c.Engine.MaxBatchVisits <= 0 {
		add("engine.max_batch_visits must be positive")
	}

	switch c.History.Driver {
	case HistoryDriverNone, HistoryDriverMemory:
	case HistoryDriverSQLite:
		if c.History.SQLitePath == "" {
			add("history.sqlite_path must be set for the sqlite driver")
		}
	case HistoryDriverPostgres:
		if c.History.PostgresDSN == "" {
			add("history.postgres_dsn must be set for the postgres driver")
		}
	default:
		add("unknown history.driver %q", c.History.Driver)
	}
	if c.History.Driver != HistoryDriverNone {
		if c.History.QueueSize <= 0 {
			add("history.queue_size must be positive")
		}
		if c.History.WorkerCount <= 0 {
			add("history.worker_count must be positive")
		}
		if c.History.MaxListLimit <= 0 {
			add("history.max_list_limit must be positive")
		}
	}
	if c.History.DedupeSize < 0 {
		add("history.dedupe_size must not be negative")
	}

	return errors.Join(errs...)
}
