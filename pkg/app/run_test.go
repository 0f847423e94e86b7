package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cronguard/internal/cron"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cronguard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "cronguard")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "cronguard.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
	if DefaultConfigPath() != cfgPath {
		t.Errorf("DefaultConfigPath = %q, want %q", DefaultConfigPath(), cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	got := DefaultDataDir()
	want := "/custom/data/cronguard"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	_ = os.Unsetenv("XDG_DATA_HOME")

	got := DefaultDataDir()
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".local", "share", "cronguard")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "text", "JSON"} {
		if _, err := NewLogger(slog.LevelDebug, format); err != nil {
			t.Errorf("NewLogger(%q): %v", format, err)
		}
	}
	if _, err := NewLogger(slog.LevelInfo, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestBuild_InvalidConfigPath(t *testing.T) {
	_, err := Build(context.Background(), Params{ConfigPath: "/nonexistent/config.yaml", Logger: discardLogger()})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestBuild_InvalidConfigContent(t *testing.T) {
	path := writeConfig(t, "not: valid: yaml: [")
	_, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: discardLogger()})
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestBuild_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
cron:
  jobs:
    - name: bad
      schedule: "61 * * * *"
      command: ["true"]
`)
	_, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: discardLogger()})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestBuild_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
cron:
  jobs:
    - name: noop
      schedule: "@daily"
      command: ["true"]
`)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: dataDir, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Config.Cron.Lock != filepath.Join(dataDir, "cronguard.lck") {
		t.Errorf("lock = %q", rt.Config.Cron.Lock)
	}
	if rt.Scheduler.Len() != 1 {
		t.Errorf("jobs = %d, want 1", rt.Scheduler.Len())
	}
	if rt.Scheduler.Window() != cron.DefaultWindow {
		t.Errorf("window = %v", rt.Scheduler.Window())
	}
	if mods := rt.App.Modules(); len(mods) != 1 || mods[0] != "store.file" {
		t.Errorf("modules = %v, want [store.file]", mods)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "cache")); err != nil {
		t.Errorf("file store directory: %v", err)
	}
}

func TestRunDaemon_Shutdown(t *testing.T) {
	path := writeConfig(t, `
cron:
  tick: "@every 1h"
modules:
  store.memory: {}
  gateway.http:
    bind: "127.0.0.1:0"
`)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.RunDaemon(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunDaemon: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunDaemon did not return after cancel")
	}
}

func TestEnvList(t *testing.T) {
	t.Parallel()

	got := envList(map[string]string{"B": "2", "A": "1"})
	if len(got) != 2 || got[0] != "A=1" || got[1] != "B=2" {
		t.Errorf("envList = %v", got)
	}
	if envList(nil) != nil {
		t.Error("empty env should be nil")
	}
}

func TestBuild_RedactsSecrets(t *testing.T) {
	path := writeConfig(t, `
cron:
  jobs:
    - name: backup
      schedule: "@daily"
      command: ["true"]
      env:
        API_TOKEN: "tok-1234567890"
        REGION: "eu-west-1"
modules:
  store.memory: {}
  gateway.http:
    auth:
      bearer_token: "gateway-secret-value"
`)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: logger})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(context.Background())

	rt.Logger.Info("job output", "line", "token tok-1234567890 region eu-west-1", "auth", "gateway-secret-value")

	out := buf.String()
	for _, secret := range []string{"tok-1234567890", "gateway-secret-value"} {
		if strings.Contains(out, secret) {
			t.Errorf("log output leaks %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, "eu-west-1") {
		t.Errorf("non-secret value should be logged: %s", out)
	}
}

func TestRegisterSecrets_NestedModules(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
modules:
  store.memory: {}
  gateway.http:
    auth:
      basic_user: admin
      basic_pass: "hunter2-extended"
`)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(context.Background())

	if got := rt.Redactor.Redact("pass=hunter2-extended"); strings.Contains(got, "hunter2") {
		t.Errorf("Redact = %q", got)
	}
	if got := rt.Redactor.Redact("user admin"); got != "user admin" {
		t.Errorf("basic_user should not be treated as a secret: %q", got)
	}
}

func waitForJobs(t *testing.T, rt *Runtime, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for rt.Scheduler.Len() != want {
		if time.Now().After(deadline) {
			t.Fatalf("jobs = %d, want %d", rt.Scheduler.Len(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startDaemon(t *testing.T, rt *Runtime) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.RunDaemon(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("RunDaemon: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("RunDaemon did not return after cancel")
		}
	})
}

const reloadBase = `
cron:
  tick: "@every 1h"
  watch_interval: 20ms
modules:
  store.memory: {}
`

const reloadJobs = `
  jobs:
    - name: report
      schedule: "0 6 * * *"
      command: ["true"]
`

func TestRunDaemon_WatchReload(t *testing.T) {
	path := writeConfig(t, reloadBase)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { rt.Close(context.Background()) })
	startDaemon(t, rt)

	// Let the watcher take its first snapshot.
	time.Sleep(100 * time.Millisecond)
	body := strings.Replace(reloadBase, "modules:", strings.TrimPrefix(reloadJobs, "\n")+"modules:", 1)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForJobs(t, rt, 1)

	if got := rt.Scheduler.Status().Jobs[0].Name; got != "report" {
		t.Errorf("job = %q, want report", got)
	}
}

func TestRunDaemon_InvalidReloadKeepsJobs(t *testing.T) {
	body := strings.Replace(reloadBase, "modules:", strings.TrimPrefix(reloadJobs, "\n")+"modules:", 1)
	path := writeConfig(t, body)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { rt.Close(context.Background()) })
	startDaemon(t, rt)

	time.Sleep(100 * time.Millisecond)
	broken := strings.Replace(body, `"0 6 * * *"`, `"61 * * * *"`, 1)
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := rt.Scheduler.Len(); n != 1 {
		t.Errorf("jobs = %d after invalid reload, want 1", n)
	}
}
