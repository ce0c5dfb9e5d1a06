package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/ephemera/pkg/app"
)

const shutdownTimeout = 30 * time.Second

// program adapts the runtime to the service manager.
type program struct {
	params app.RunParams
	rt     *app.Runtime
}

// Compile-time interface check.
var _ service.Interface = (*program)(nil)

// Start must not block.
func (p *program) Start(_ service.Service) error {
	rt, err := app.Build(context.Background(), p.params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		return err
	}
	p.rt = rt
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.rt == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.rt.Shutdown(ctx)
}

func serviceConfig(cfgPath string) (*service.Config, error) {
	args := []string{"start"}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "ephemera",
		DisplayName: "Ephemera",
		Description: "Expires stories, purges disappearing messages, sends event reminders and indexes post metadata.",
		Arguments:   args,
	}, nil
}

func newService(params app.RunParams) (service.Service, error) {
	cfg, err := serviceConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	return service.New(&program{params: params}, cfg)
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the ephemera system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file recorded in the service definition (install only)")

	for _, action := range []struct{ name, short string }{
		{"install", "Install ephemera as a system service"},
		{"uninstall", "Remove the system service"},
		{"start", "Start the installed service"},
		{"stop", "Stop the running service"},
		{"restart", "Restart the running service"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   action.name,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				params, err := runParams(cmd)
				if err != nil {
					return err
				}
				svc, err := newService(params)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action.name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action.name)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(app.RunParams{})
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "not installed")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusString(st))
			return nil
		},
	})
	return cmd
}

func statusString(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
