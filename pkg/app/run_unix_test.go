//go:build unix

package app

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/flemzord/cronguard/internal/cron"
)

func TestRunOnce_EndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	work := t.TempDir()
	path := writeConfig(t, `
cron:
  window: 5m
  jobs:
    - name: touch
      schedule: "* * * * *"
      command: ["/bin/sh", "-c", "echo $MARK >> out.txt"]
      dir: `+work+`
      env:
        MARK: hit
modules:
  store.sqlite: {}
`)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: dataDir, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(context.Background())

	minute := time.Now().Truncate(time.Minute)

	// The first cycle sees an every-minute job that fired inside the window.
	outcome, err := rt.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if outcome != cron.OutcomeRan {
		t.Errorf("first outcome = %v, want ran", outcome)
	}

	// The stored next run is in the future, so nothing fires again.
	if _, err := rt.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}

	if _, err := os.Stat(rt.Config.Cron.Lock); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after the cycle, stat err = %v", err)
	}

	if !time.Now().Truncate(time.Minute).Equal(minute) {
		t.Skip("cycles straddled a minute boundary")
	}

	out, err := os.ReadFile(filepath.Join(work, "out.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := strings.Count(string(out), "hit"); got != 1 {
		t.Errorf("job ran %d times, want 1", got)
	}
}

func TestRunOnce_Contended(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
cron:
  jobs:
    - name: never
      schedule: "* * * * *"
      command: ["false"]
`)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: dataDir, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(context.Background())

	// A fresh lock file marks another cycle as in progress.
	if err := os.WriteFile(rt.Config.Cron.Lock, []byte("."), 0o600); err != nil {
		t.Fatal(err)
	}

	outcome, err := rt.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if outcome != cron.OutcomeContended {
		t.Errorf("outcome = %v, want contended", outcome)
	}
}

func TestRunDaemon_SIGHUPReload(t *testing.T) {
	// Keep SIGHUP caught for the whole test so a signal sent before the
	// daemon subscribes cannot terminate the process.
	hold := make(chan os.Signal, 1)
	signal.Notify(hold, syscall.SIGHUP)
	defer signal.Stop(hold)

	path := writeConfig(t, strings.Replace(reloadBase, "  watch_interval: 20ms\n", "", 1))
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: t.TempDir(), Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { rt.Close(context.Background()) })
	startDaemon(t, rt)

	body := strings.Replace(reloadBase, "  watch_interval: 20ms\n", strings.TrimPrefix(reloadJobs, "\n"), 1)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for rt.Scheduler.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs = %d after SIGHUP, want 1", rt.Scheduler.Len())
		}
		if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestRunOnce_AuditLog(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
cron:
  audit_log: audit/runs.jsonl
  jobs:
    - name: ok
      schedule: "* * * * *"
      command: ["/bin/sh", "-c", "exit 0"]
    - name: fails
      schedule: "* * * * *"
      command: ["/bin/sh", "-c", "exit 3"]
modules:
  store.memory: {}
`)
	rt, err := Build(context.Background(), Params{ConfigPath: path, DataDir: dataDir, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := rt.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce should report the failing job")
	}
	rt.Close(context.Background())

	data, err := os.ReadFile(filepath.Join(dataDir, "audit", "runs.jsonl"))
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2: %s", len(lines), data)
	}
	if !strings.Contains(lines[0], `"job":"ok"`) || !strings.Contains(lines[0], `"status":"ok"`) {
		t.Errorf("line 0 = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"job":"fails"`) || !strings.Contains(lines[1], `"status":"failed"`) {
		t.Errorf("line 1 = %s", lines[1])
	}
}
