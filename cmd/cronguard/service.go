package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/cronguard/pkg/app"
)

const serviceStopTimeout = 30 * time.Second

var serviceActions = []string{"install", "uninstall", "start", "stop", "restart", "run", "status"}

// program adapts the daemon to the service manager's Start/Stop calls.
type program struct {
	params app.Params
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

// Start implements service.Interface. It must not block.
func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	rt, err := app.Build(ctx, p.params)
	if err != nil {
		cancel()
		return err
	}
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		defer rt.Close(context.Background())
		p.done <- rt.RunDaemon(ctx)
	}()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("daemon did not stop within %s", serviceStopTimeout)
	}
}

// serviceConfig describes the installed unit. The service re-invokes this
// binary as "service run" with absolute config and data paths.
func serviceConfig(flags *globalFlags) (*service.Config, error) {
	args := []string{"service", "run", "--log-level", flags.logLevel, "--log-format", flags.logFormat}
	if flags.config != "" {
		abs, err := filepath.Abs(flags.config)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if flags.dataDir != "" {
		abs, err := filepath.Abs(flags.dataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	return &service.Config{
		Name:        "cronguard",
		DisplayName: "cronguard",
		Description: "Runs crontab-scheduled jobs under a single-instance lock.",
		Arguments:   args,
	}, nil
}

func serviceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|run|status>",
		Short:     "Manage cronguard as a system service",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: serviceActions,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			svcCfg, err := serviceConfig(flags)
			if err != nil {
				return err
			}
			s, err := service.New(&program{params: params}, svcCfg)
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}

			switch action := args[0]; action {
			case "run":
				return s.Run()
			case "status":
				st, err := s.Status()
				if err != nil {
					return fmt.Errorf("service: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
				return nil
			default:
				if !slices.Contains(service.ControlAction[:], action) {
					return fmt.Errorf("service: unknown action %q", action)
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			}
		},
	}
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
