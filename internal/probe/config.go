// Package probe drives a running growth service with synthetic visits and
// checks every returned assessment against the classification rules.
package probe

import (
	"runtime"
	"time"

	"github.com/selim-create/kg-growth/internal/domain/classify"
)

// Default probe settings.
const (
	DefaultBaseURL     = "http://localhost:9080"
	DefaultVisits      = 1000
	DefaultChildren    = 100
	DefaultTimeout     = 30 * time.Second
	DefaultHistoryWait = 10 * time.Second
	DefaultDuplicates  = 10
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Visits   int           // Number of visits to generate
	Children int           // Visits are spread over this many children
	Workers  int           // Concurrent submitters
	Timeout  time.Duration // HTTP request timeout
	Seed     uint64        // Seed for the visit generator; 0 picks one

	// Duplicates re-submits this many visits and expects them flagged.
	Duplicates int

	// CheckHistory reads every child's history back and compares counts.
	CheckHistory bool
	HistoryWait  time.Duration

	// Thresholds and Policy must match the service configuration.
	Thresholds classify.Thresholds
	Policy     classify.Policy

	Verbose bool
}

// DefaultConfig returns a Config matching a default service.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Visits:       DefaultVisits,
		Children:     DefaultChildren,
		Workers:      runtime.NumCPU() * 2,
		Timeout:      DefaultTimeout,
		Duplicates:   DefaultDuplicates,
		CheckHistory: true,
		HistoryWait:  DefaultHistoryWait,
		Thresholds:   classify.DefaultThresholds(),
		Policy:       classify.DefaultPolicy(),
	}
}

func (c *Config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Visits < 1 {
		c.Visits = 1
	}
	if c.Children < 1 {
		c.Children = 1
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HistoryWait <= 0 {
		c.HistoryWait = DefaultHistoryWait
	}
	c.Duplicates = max(0, min(c.Duplicates, c.Visits))
}

// Violation is one assessment that broke a classification rule.
type Violation struct {
	ChildID         string `json:"child_id"`
	VisitID         string `json:"visit_id"`
	MeasurementType string `json:"measurement_type"`
	Rule            string `json:"rule"`
	Detail          string `json:"detail"`
}

// Rules checked on every assessment.
const (
	RulePercentileRange = "percentile_range"
	RuleZPercentile     = "z_percentile"
	RuleCategory        = "category"
	RuleRedFlag         = "red_flag"
	RuleDuplicate       = "duplicate"
	RuleHistory         = "history"
)

// Stats summarises a probe run.
type Stats struct {
	VisitsGenerated   int            `json:"visits_generated"`
	VisitsSubmitted   int            `json:"visits_submitted"`
	VisitsFailed      int            `json:"visits_failed"`
	VisitsRecorded    int            `json:"visits_recorded"`
	Assessments       int            `json:"assessments"`
	SlotErrors        map[string]int `json:"slot_errors"`
	Categories        map[string]int `json:"categories"`
	RedFlags          int            `json:"red_flags"`
	DuplicatesSent    int            `json:"duplicates_sent"`
	DuplicatesFlagged int            `json:"duplicates_flagged"`
	HistoryChecked    int            `json:"history_checked"`
	Violations        []Violation    `json:"violations"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	Duration          time.Duration  `json:"duration"`
}

// Passed reports whether the run found no violations and no failed requests.
func (s *Stats) Passed() bool {
	return len(s.Violations) == 0 && s.VisitsFailed == 0
}
