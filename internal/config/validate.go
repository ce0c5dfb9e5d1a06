package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/cron"
)

// requiredNamespaces are the module namespaces the jobs depend on. Exactly
// one implementation of each must be configured.
var requiredNamespaces = []string{"docstore", "objstore", "notify"}

// Validate checks the structural validity of a Config.
// It verifies the version field, that every referenced module ID exists in
// the registry, that the storage and notification collaborators are
// configured, and that job settings are usable.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	namespaces := make(map[string][]string)
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		ns := core.ModuleID(id).Namespace()
		namespaces[ns] = append(namespaces[ns], id)
	}

	if len(cfg.Modules) > 0 {
		for _, ns := range requiredNamespaces {
			switch n := len(namespaces[ns]); {
			case n == 0:
				errs = append(errs, fmt.Errorf("config: a %s.* module is required%s", ns, available(ns)))
			case n > 1:
				errs = append(errs, fmt.Errorf("config: only one %s.* module may be configured, got %s",
					ns, strings.Join(namespaces[ns], ", ")))
			}
		}
	}

	errs = append(errs, validateJobs(&cfg.Jobs)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	return errors.Join(errs...)
}

// available lists the registered implementations of a namespace for error
// messages.
func available(ns string) string {
	mods := core.ModulesIn(ns)
	if len(mods) == 0 {
		return ""
	}
	ids := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = string(m.ID)
	}
	return " (available: " + strings.Join(ids, ", ") + ")"
}

func validateJobs(j *JobsConfig) []error {
	var errs []error

	if j.Timezone != "" {
		if _, err := time.LoadLocation(j.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("config: jobs.timezone: %w", err))
		}
	}
	if j.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("config: jobs.max_concurrency must be non-negative, got %d", j.MaxConcurrency))
	}
	if j.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: jobs.timeout must be non-negative, got %s", j.Timeout))
	}

	for name, sj := range map[string]ScheduledJob{
		"reaper":   j.Reaper,
		"purger":   j.Purger,
		"reminder": j.Reminder,
	} {
		if sj.Disabled || sj.Schedule == "" {
			continue
		}
		if err := cron.ValidateSchedule(sj.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: jobs.%s.schedule: %w", name, err))
		}
	}

	if j.Extractor.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("config: jobs.extractor.max_retries must be non-negative, got %d", j.Extractor.MaxRetries))
	}
	return errs
}

func validateTelemetry(t *TelemetryConfig) []error {
	r := t.Tracing.SampleRatio
	if r < 0 || r > 1 {
		return []error{fmt.Errorf("config: telemetry.tracing.sample_ratio must be within [0, 1], got %v", r)}
	}
	return nil
}
