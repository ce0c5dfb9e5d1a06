package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/ephemera/internal/cron"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("version: \"1\"\nmodules:\n  docstore.sqlite: {}\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	j := cfg.Jobs
	if j.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("max_concurrency = %d", j.MaxConcurrency)
	}
	if j.Timeout != DefaultJobTimeout {
		t.Errorf("timeout = %s", j.Timeout)
	}
	for name, s := range map[string]string{"reaper": j.Reaper.Schedule, "purger": j.Purger.Schedule, "reminder": j.Reminder.Schedule} {
		if s != cron.DefaultSchedule {
			t.Errorf("%s schedule = %q, want %q", name, s, cron.DefaultSchedule)
		}
	}
	if j.Extractor.MaxRetries != DefaultMaxRetries {
		t.Errorf("max_retries = %d", j.Extractor.MaxRetries)
	}
	if !cfg.Telemetry.MetricsEnabled() {
		t.Error("metrics should default to enabled")
	}
}

func TestParse_ExplicitValues(t *testing.T) {
	t.Parallel()

	raw := `
version: "1"
jobs:
  timezone: Europe/Paris
  max_concurrency: 4
  timeout: 90s
  reaper:
    schedule: "*/15 * * * *"
  reminder:
    disabled: true
  extractor:
    max_retries: 5
telemetry:
  metrics: false
  tracing:
    endpoint: localhost:4318
    insecure: true
    sample_ratio: 0.25
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	j := cfg.Jobs
	if j.Timezone != "Europe/Paris" || j.MaxConcurrency != 4 || j.Timeout != 90*time.Second {
		t.Errorf("jobs = %+v", j)
	}
	if j.Reaper.Schedule != "*/15 * * * *" {
		t.Errorf("reaper schedule = %q", j.Reaper.Schedule)
	}
	if !j.Reminder.Disabled {
		t.Error("reminder should be disabled")
	}
	if j.Extractor.MaxRetries != 5 {
		t.Errorf("max_retries = %d", j.Extractor.MaxRetries)
	}
	if cfg.Telemetry.MetricsEnabled() {
		t.Error("metrics should be disabled")
	}
	tr := cfg.Telemetry.Tracing
	if tr.Endpoint != "localhost:4318" || !tr.Insecure || tr.SampleRatio != 0.25 {
		t.Errorf("tracing = %+v", tr)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EPHEMERA_TEST_SECRET", "s3cret")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{name: "set", in: "token: ${EPHEMERA_TEST_SECRET}", want: "token: s3cret"},
		{name: "default", in: "path: ${EPHEMERA_TEST_UNSET:-/var/lib/ephemera}", want: "path: /var/lib/ephemera"},
		{name: "empty default", in: "x: ${EPHEMERA_TEST_UNSET:-}", want: "x: "},
		{name: "unresolved", in: "x: ${EPHEMERA_TEST_UNSET}", wantErr: "EPHEMERA_TEST_UNSET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv([]byte(tt.in))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("EPHEMERA_TEST_DB", "/tmp/e.db")
	path := filepath.Join(t.TempDir(), "ephemera.yaml")
	raw := "version: \"1\"\nmodules:\n  docstore.sqlite:\n    path: ${EPHEMERA_TEST_DB}\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	node := cfg.Modules["docstore.sqlite"]
	var mod struct {
		Path string `yaml:"path"`
	}
	if err := node.Decode(&mod); err != nil {
		t.Fatal(err)
	}
	if mod.Path != "/tmp/e.db" {
		t.Errorf("path = %q", mod.Path)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"misspelled job key", "version: \"1\"\njobs:\n  max_concurency: 4\n", "max_concurency"},
		{"unknown section", "version: \"1\"\nworkers: {}\n", "workers"},
		{"not a mapping", "- docstore.sqlite\n", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.raw))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "# only a comment\n"} {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrEmpty) {
			t.Errorf("Parse(%q) err = %v, want ErrEmpty", raw, err)
		}
	}
}

func TestParse_ModuleSectionsStayFreeForm(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte("version: \"1\"\nmodules:\n  gateway.http:\n    anything: goes\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := cfg.Modules["gateway.http"]; !ok {
		t.Error("module section missing")
	}
}
