package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCollector_RecordCycle(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordCycle(OutcomeRan, time.Second)
	c.RecordCycle(OutcomeRan, time.Second)
	c.RecordCycle(OutcomeContended, 0)

	if got := testutil.ToFloat64(c.cycles.WithLabelValues(OutcomeRan)); got != 2 {
		t.Errorf("ran cycles = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cycles.WithLabelValues(OutcomeContended)); got != 1 {
		t.Errorf("contended cycles = %v, want 1", got)
	}
	var m dto.Metric
	if err := c.cycleDuration.Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestCollector_RecordJob(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordJob("backup", time.Millisecond, nil)
	c.RecordJob("backup", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(c.jobRuns.WithLabelValues("backup")); got != 2 {
		t.Errorf("runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.jobFailures.WithLabelValues("backup")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestCollector_SetNextRun(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetNextRun("a", at)
	if got := testutil.ToFloat64(c.nextRun.WithLabelValues("a")); got != float64(at.Unix()) {
		t.Errorf("next run = %v, want %v", got, at.Unix())
	}

	c.SetNextRun("a", time.Time{})
	if got := testutil.CollectAndCount(c.nextRun); got != 0 {
		t.Errorf("series after delete = %d, want 0", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.RecordCycle(OutcomeIdle, 0)
	c.RecordJob("x", 0, nil)
	c.SetNextRun("x", time.Now())
	c.RecordPersistError("save")
	if c.Registry() != nil {
		t.Error("nil collector should have no registry")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordPersistError("load")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `cronguard_state_errors_total{op="load"} 1`) {
		t.Errorf("metrics output missing state error counter:\n%s", body)
	}
}
