package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/ephemera/internal/cron"
	"github.com/flemzord/ephemera/modules/notify/push"
)

const defaultConfigFile = "ephemera.yaml"

// answers are the wizard inputs a starter configuration is rendered from.
type answers struct {
	DatabasePath  string
	MediaRoot     string
	Transport     string
	Timezone      string
	Schedule      string
	Gateway       bool
	Bind          string
	AdminToken    bool
	WebhookSecret bool
}

func defaultAnswers() answers {
	return answers{
		Transport: push.TransportLog,
		Schedule:  cron.DefaultSchedule,
		Gateway:   true,
		Bind:      "127.0.0.1:8080",
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			a := defaultAnswers()
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				if err := ask(&a); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("aborted")
					}
					return err
				}
			}

			raw, err := renderConfig(a)
			if err != nil {
				return err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return fmt.Errorf("creating %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(path, raw, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Accept all defaults without prompting")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func ask(a *answers) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Database path").
				Placeholder("default: <data dir>/ephemera.db").
				Value(&a.DatabasePath),
			huh.NewInput().
				Title("Media bucket directory").
				Placeholder("default: <data dir>/media").
				Value(&a.MediaRoot),
			huh.NewSelect[string]().
				Title("Notification transport").
				Options(
					huh.NewOption("Log only", push.TransportLog),
					huh.NewOption("WebSocket push (tokens signed with $EPHEMERA_PUSH_SECRET)", push.TransportWebsocket),
				).
				Value(&a.Transport),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Job schedule (cron)").
				Value(&a.Schedule).
				Validate(cron.ValidateSchedule),
			huh.NewInput().
				Title("Time zone").
				Placeholder("local").
				Value(&a.Timezone).
				Validate(validateTimezone),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the HTTP gateway?").
				Value(&a.Gateway),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway bind address").
				Value(&a.Bind),
			huh.NewConfirm().
				Title("Protect the admin API with $EPHEMERA_ADMIN_TOKEN?").
				Value(&a.AdminToken),
			huh.NewConfirm().
				Title("Sign creation webhooks with $EPHEMERA_WEBHOOK_SECRET?").
				Value(&a.WebhookSecret),
		).WithHideFunc(func() bool { return !a.Gateway }),
	).Run()
}

func validateTimezone(s string) error {
	if s == "" {
		return nil
	}
	_, err := time.LoadLocation(s)
	return err
}

type starterConfig struct {
	Version string         `yaml:"version"`
	Modules map[string]any `yaml:"modules"`
	Jobs    starterJobs    `yaml:"jobs"`
}

type starterJobs struct {
	Timezone string          `yaml:"timezone,omitempty"`
	Reaper   starterSchedule `yaml:"reaper"`
	Purger   starterSchedule `yaml:"purger"`
	Reminder starterSchedule `yaml:"reminder"`
}

type starterSchedule struct {
	Schedule string `yaml:"schedule"`
}

func notifyConfig(transport string) map[string]any {
	mod := map[string]any{"transport": transport}
	if transport == push.TransportWebsocket {
		mod["secret"] = "${EPHEMERA_PUSH_SECRET}"
	}
	return mod
}

func renderConfig(a answers) ([]byte, error) {
	if err := cron.ValidateSchedule(a.Schedule); err != nil {
		return nil, err
	}

	docstore := map[string]any{}
	if a.DatabasePath != "" {
		docstore["path"] = a.DatabasePath
	}
	objstore := map[string]any{}
	if a.MediaRoot != "" {
		objstore["root"] = a.MediaRoot
	}

	cfg := starterConfig{
		Version: "1",
		Modules: map[string]any{
			"docstore.sqlite": docstore,
			"objstore.fs":     objstore,
			"notify.push":     notifyConfig(a.Transport),
		},
		Jobs: starterJobs{
			Timezone: a.Timezone,
			Reaper:   starterSchedule{Schedule: a.Schedule},
			Purger:   starterSchedule{Schedule: a.Schedule},
			Reminder: starterSchedule{Schedule: a.Schedule},
		},
	}

	if a.Gateway {
		gw := map[string]any{"bind": a.Bind}
		if a.AdminToken {
			gw["auth"] = map[string]any{"bearer_token": "${EPHEMERA_ADMIN_TOKEN}"}
		}
		if a.WebhookSecret {
			gw["webhooks"] = map[string]any{
				"posts": map[string]any{"secret": "${EPHEMERA_WEBHOOK_SECRET}"},
			}
		}
		cfg.Modules["gateway.http"] = gw
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	return append([]byte("# Generated by `ephemera config init`.\n"), raw...), nil
}
