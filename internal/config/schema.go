// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and structural validation for ephemera.
package config

import (
	"time"

	"github.com/flemzord/ephemera/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "docstore.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Jobs configures the maintenance jobs and their scheduler.
	Jobs JobsConfig `yaml:"jobs"`

	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// JobsConfig holds scheduler-wide and per-job settings.
type JobsConfig struct {
	// Timezone is the IANA location cron expressions are evaluated in.
	// Empty means the local time zone.
	Timezone string `yaml:"timezone"`

	// MaxConcurrency bounds the fan-out of a single job run
	// (file deletes, conversations, sends). Defaults to 16.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout bounds a single job run. Defaults to 5m.
	Timeout time.Duration `yaml:"timeout"`

	Reaper    ScheduledJob    `yaml:"reaper"`
	Purger    ScheduledJob    `yaml:"purger"`
	Reminder  ScheduledJob    `yaml:"reminder"`
	Extractor ExtractorConfig `yaml:"extractor"`
}

// ScheduledJob configures a periodic job.
type ScheduledJob struct {
	// Schedule is a 5-field cron expression. Defaults to hourly.
	Schedule string `yaml:"schedule"`
	Disabled bool   `yaml:"disabled"`
}

// ExtractorConfig configures the creation-triggered metadata extractor.
type ExtractorConfig struct {
	Disabled bool `yaml:"disabled"`

	// MaxRetries is the number of redeliveries after a failed extraction.
	// Defaults to 3.
	MaxRetries int `yaml:"max_retries"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	// Metrics enables the Prometheus registry and /metrics. Defaults to true.
	Metrics *bool `yaml:"metrics"`

	Tracing telemetry.TracingConfig `yaml:"tracing"`
}

// MetricsEnabled reports whether metrics are enabled.
func (t TelemetryConfig) MetricsEnabled() bool {
	return t.Metrics == nil || *t.Metrics
}
