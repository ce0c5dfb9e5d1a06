package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/ephemera/internal/config"
	"github.com/flemzord/ephemera/internal/trigger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionListsModules(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	for _, id := range []string{"docstore.sqlite", "gateway.http", "notify.push", "objstore.fs"} {
		if !strings.Contains(out, id) {
			t.Errorf("output missing %s:\n%s", id, out)
		}
	}
}

func TestRenderConfig(t *testing.T) {
	t.Setenv("EPHEMERA_ADMIN_TOKEN", "tok")
	t.Setenv("EPHEMERA_WEBHOOK_SECRET", "sec")
	t.Setenv("EPHEMERA_PUSH_SECRET", "push")

	tests := []struct {
		name        string
		answers     answers
		wantGateway bool
	}{
		{name: "defaults", answers: defaultAnswers(), wantGateway: true},
		{
			name: "everything",
			answers: answers{
				DatabasePath:  "/var/lib/ephemera/db.sqlite",
				MediaRoot:     "/srv/media",
				Transport:     "websocket",
				Timezone:      "Europe/Paris",
				Schedule:      "*/10 * * * *",
				Gateway:       true,
				Bind:          "0.0.0.0:9000",
				AdminToken:    true,
				WebhookSecret: true,
			},
			wantGateway: true,
		},
		{
			name:    "no gateway",
			answers: answers{Transport: "log", Schedule: "0 * * * *"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := renderConfig(tt.answers)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			cfg, err := config.Parse(raw)
			if err != nil {
				t.Fatalf("parse rendered config: %v\n%s", err, raw)
			}
			if err := config.Validate(cfg); err != nil {
				t.Fatalf("rendered config invalid: %v\n%s", err, raw)
			}
			if cfg.Jobs.Reaper.Schedule != tt.answers.Schedule {
				t.Errorf("reaper schedule = %q", cfg.Jobs.Reaper.Schedule)
			}
			_, hasGateway := cfg.Modules["gateway.http"]
			if hasGateway != tt.wantGateway {
				t.Errorf("gateway present = %v, want %v", hasGateway, tt.wantGateway)
			}
			if tt.answers.Transport == "websocket" && !strings.Contains(string(raw), "${EPHEMERA_PUSH_SECRET}") {
				t.Errorf("push secret not rendered:\n%s", raw)
			}
			if tt.answers.WebhookSecret && !strings.Contains(string(raw), trigger.WebhookSource+":") {
				t.Errorf("webhook secret not rendered:\n%s", raw)
			}
		})
	}
}

func TestRenderConfig_RejectsBadSchedule(t *testing.T) {
	t.Parallel()
	a := defaultAnswers()
	a.Schedule = "sometimes"
	if _, err := renderConfig(a); err == nil {
		t.Error("expected error")
	}
}

func TestConfigInitAndCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ephemera.yaml")

	if _, err := execute(t, "config", "init", path, "--yes"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := execute(t, "config", "init", path, "--yes"); err == nil {
		t.Error("expected refusal to overwrite")
	}

	out, err := execute(t, "config", "check", path, "--data-dir", filepath.Join(dir, "data"), "--log-level", "error")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK (4 modules)") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "expired_content_reaper") {
		t.Errorf("jobs not listed: %q", out)
	}
}

func TestRunParams_RejectsBadLogLevel(t *testing.T) {
	_, err := execute(t, "run", "expired_content_reaper", "--log-level", "shout", "-c", "/nonexistent.yaml")
	if err == nil || !strings.Contains(err.Error(), "log level") {
		t.Errorf("err = %v", err)
	}
}

func TestServiceConfig(t *testing.T) {
	t.Parallel()
	cfg, err := serviceConfig("ephemera.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "ephemera" {
		t.Errorf("name = %q", cfg.Name)
	}
	if len(cfg.Arguments) != 3 || cfg.Arguments[0] != "start" || !filepath.IsAbs(cfg.Arguments[2]) {
		t.Errorf("arguments = %v", cfg.Arguments)
	}

	cfg, err = serviceConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Arguments) != 1 {
		t.Errorf("arguments = %v", cfg.Arguments)
	}
}
