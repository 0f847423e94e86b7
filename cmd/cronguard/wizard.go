package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/cronguard/internal/config"
	"github.com/flemzord/cronguard/internal/crontab"
)

// answers collects the config init form.
type answers struct {
	Lock        string
	Window      string
	Store       string
	StorePath   string
	Gateway     bool
	GatewayBind string
	JobName     string
	JobSchedule string
	JobCommand  string
}

func defaultAnswers() answers {
	return answers{
		Window:      config.DefaultWindow.String(),
		Store:       config.DefaultStore,
		GatewayBind: "127.0.0.1:9464",
	}
}

func runWizard(a *answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Lock file").
				Description("Leave empty for cronguard.lck in the data directory.").
				Value(&a.Lock),
			huh.NewInput().
				Title("Grace window").
				Description("Overdue jobs within this window still run. Also the stale lock age.").
				Value(&a.Window).
				Validate(validateWindow),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Run state store").
				Options(
					huh.NewOption("Files in the data directory", "store.file"),
					huh.NewOption("SQLite database", "store.sqlite"),
					huh.NewOption("Memory (daemon only, not persisted)", "store.memory"),
				).
				Value(&a.Store),
			huh.NewInput().
				Title("Store path").
				Description("Directory for files, database path for SQLite. Empty for the default.").
				Value(&a.StorePath),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the HTTP status gateway?").
				Value(&a.Gateway),
			huh.NewInput().
				Title("Gateway bind address").
				Value(&a.GatewayBind),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First job name").
				Description("Leave empty to skip.").
				Value(&a.JobName),
			huh.NewInput().
				Title("Schedule").
				Placeholder("*/5 * * * *").
				Value(&a.JobSchedule).
				Validate(validateSchedule),
			huh.NewInput().
				Title("Command").
				Placeholder("/usr/local/bin/backup --full").
				Value(&a.JobCommand),
		),
	)
	return form.Run()
}

func validateWindow(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d < time.Second {
		return errors.New("window must be at least 1s")
	}
	return nil
}

func validateSchedule(s string) error {
	if s == "" {
		return nil
	}
	_, err := crontab.Compile(s)
	return err
}

// renderConfig turns form answers into a YAML document that passes
// config.Validate.
func renderConfig(a answers) ([]byte, error) {
	window, err := time.ParseDuration(a.Window)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}

	cfg := &config.Config{
		Version: "1",
		Cron: config.CronConfig{
			Lock:   a.Lock,
			Window: window,
		},
		Modules: map[string]yaml.Node{},
	}

	storeCfg := map[string]string{}
	if a.StorePath != "" {
		switch a.Store {
		case "store.file":
			storeCfg["dir"] = a.StorePath
		case "store.sqlite":
			storeCfg["path"] = a.StorePath
		}
	}
	if err := setModule(cfg, a.Store, storeCfg); err != nil {
		return nil, err
	}
	if a.Gateway {
		if err := setModule(cfg, "gateway.http", map[string]string{"bind": a.GatewayBind}); err != nil {
			return nil, err
		}
	}

	if a.JobName != "" {
		argv := strings.Fields(a.JobCommand)
		if len(argv) == 0 {
			return nil, fmt.Errorf("job %q: command is required", a.JobName)
		}
		cfg.Cron.Jobs = append(cfg.Cron.Jobs, config.JobConfig{
			Name:     a.JobName,
			Schedule: a.JobSchedule,
			Command:  argv,
		})
	}

	return config.Marshal(cfg)
}

func setModule(cfg *config.Config, id string, values map[string]string) error {
	var node yaml.Node
	if err := node.Encode(values); err != nil {
		return fmt.Errorf("module %s: %w", id, err)
	}
	cfg.Modules[id] = node
	return nil
}
