package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/cronguard/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cronguard dev") {
		t.Errorf("output = %q", out)
	}
	for _, id := range []string{"gateway.http", "store.file", "store.memory", "store.sqlite"} {
		if !strings.Contains(out, id) {
			t.Errorf("module %s missing from version output", id)
		}
	}
}

func TestNext(t *testing.T) {
	out, err := execute(t, "next", "0 0 29 2 *", "-n", "2", "--from", "2023-01-01T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	want := "2024-02-29 00:00 Thu UTC\n2028-02-29 00:00 Tue UTC\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestNext_Impossible(t *testing.T) {
	out, err := execute(t, "next", "0 0 30 2 *", "--from", "2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if out != "no further occurrences\n" {
		t.Errorf("output = %q", out)
	}
}

func TestNext_Errors(t *testing.T) {
	tests := [][]string{
		{"next", "not a schedule"},
		{"next", "* * * * *", "-n", "0"},
		{"next", "* * * * *", "--from", "yesterday"},
		{"next"},
	}
	for _, args := range tests {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestConfigCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cronguard.yaml")
	body := `
cron:
  jobs:
    - name: backup
      schedule: "@daily"
      command: ["true"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--data-dir", filepath.Join(dir, "data"), "config", "check", path)
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK (1 modules, 1 jobs)") || !strings.Contains(out, `job backup "@daily"`) {
		t.Errorf("output = %q", out)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	if _, err := execute(t, "--log-level", "loud", "run"); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestServiceRejectsUnknownAction(t *testing.T) {
	if _, err := execute(t, "service", "explode"); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestRenderConfig(t *testing.T) {
	a := defaultAnswers()
	a.Store = "store.sqlite"
	a.StorePath = "/var/lib/cronguard/state.db"
	a.Gateway = true
	a.JobName = "backup"
	a.JobSchedule = "*/5 * * * *"
	a.JobCommand = "/usr/local/bin/backup --full"

	raw, err := renderConfig(a)
	if err != nil {
		t.Fatalf("renderConfig: %v", err)
	}

	cfg, err := config.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, raw)
	}
	config.ApplyDefaults(cfg, t.TempDir())
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v\n%s", err, raw)
	}

	if _, ok := cfg.Modules["gateway.http"]; !ok {
		t.Error("gateway.http missing")
	}
	if _, ok := cfg.Modules["store.file"]; ok {
		t.Error("default store should not be added next to store.sqlite")
	}
	var sqliteCfg struct {
		Path string `yaml:"path"`
	}
	node := cfg.Modules["store.sqlite"]
	if err := node.Decode(&sqliteCfg); err != nil || sqliteCfg.Path != a.StorePath {
		t.Errorf("store.sqlite path = %q, %v", sqliteCfg.Path, err)
	}
	if len(cfg.Cron.Jobs) != 1 || len(cfg.Cron.Jobs[0].Command) != 2 {
		t.Errorf("jobs = %+v", cfg.Cron.Jobs)
	}
	if cfg.Cron.Window != config.DefaultWindow {
		t.Errorf("window = %v", cfg.Cron.Window)
	}
}

func TestRenderConfig_JobWithoutCommand(t *testing.T) {
	a := defaultAnswers()
	a.JobName = "x"
	a.JobSchedule = "@daily"
	if _, err := renderConfig(a); err == nil {
		t.Error("expected error for job without command")
	}
}

func TestValidators(t *testing.T) {
	if validateWindow("500ms") == nil || validateWindow("soon") == nil {
		t.Error("validateWindow accepted an invalid window")
	}
	if validateWindow("5m") != nil {
		t.Error("validateWindow rejected 5m")
	}
	if validateSchedule("") != nil || validateSchedule("@hourly") != nil {
		t.Error("validateSchedule rejected a valid schedule")
	}
	if validateSchedule("* *") == nil {
		t.Error("validateSchedule accepted a short expression")
	}
}
