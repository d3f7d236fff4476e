package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"restqa/internal/metrics"
)

func TestObserve(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest("GET", 200, 40*time.Millisecond)
	m.ObserveRequest("GET", 200, 60*time.Millisecond)
	m.ObserveRequest("POST", 0, time.Millisecond)
	m.ObserveRetry()
	m.ObserveAssertionFailures("soft", 3)
	m.ObserveAssertionFailures("hard", 0)
	m.ObserveScenario("bdd", true)
	m.ObserveScenario("bdd", false)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")); got != 2 {
		t.Fatalf("GET 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "error")); got != 1 {
		t.Fatalf("POST error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RetriesTotal); got != 1 {
		t.Fatalf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AssertionFailures.WithLabelValues("soft")); got != 3 {
		t.Fatalf("soft failures = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.ScenariosTotal.WithLabelValues("bdd", "failed")); got != 1 {
		t.Fatalf("failed scenarios = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveRequest("GET", 200, time.Millisecond)
	m.ObserveRetry()
	m.ObserveAssertionFailures("hard", 1)
	m.ObserveScenario("suite", true)
}

func TestWriteFile(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest("DELETE", 204, 5*time.Millisecond)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `restqa_http_requests_total{code="204",method="DELETE"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", data)
	}
}
