package config

import (
	"time"

	"github.com/flemzord/ephemera/internal/cron"
)

// Default values applied by ApplyDefaults.
const (
	DefaultMaxConcurrency = 16
	DefaultJobTimeout     = 5 * time.Minute
	DefaultMaxRetries     = 3
)

// ApplyDefaults fills unset fields. Explicit zero values that are invalid
// (negative concurrency, for instance) are left for Validate to report.
func ApplyDefaults(cfg *Config) {
	j := &cfg.Jobs
	if j.MaxConcurrency == 0 {
		j.MaxConcurrency = DefaultMaxConcurrency
	}
	if j.Timeout == 0 {
		j.Timeout = DefaultJobTimeout
	}
	for _, sj := range []*ScheduledJob{&j.Reaper, &j.Purger, &j.Reminder} {
		if sj.Schedule == "" {
			sj.Schedule = cron.DefaultSchedule
		}
	}
	if j.Extractor.MaxRetries == 0 {
		j.Extractor.MaxRetries = DefaultMaxRetries
	}
}
