package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.Write("student", "engine")
	r.Write("student", "engine")
	r.Write("student", "snapshot")
	r.Fallback("class", "delete")
	r.BatchItem("archived", true)
	r.BatchItem("archived", false)
	r.SetDegraded(true)

	if got := testutil.ToFloat64(r.writes.WithLabelValues("student", "engine")); got != 2 {
		t.Errorf("Expected 2 engine writes, got %v", got)
	}
	if got := testutil.ToFloat64(r.fallbacks.WithLabelValues("class", "delete")); got != 1 {
		t.Errorf("Expected 1 fallback, got %v", got)
	}
	if got := testutil.ToFloat64(r.batch.WithLabelValues("archived", "failure")); got != 1 {
		t.Errorf("Expected 1 failed batch item, got %v", got)
	}
	if got := testutil.ToFloat64(r.degraded); got != 1 {
		t.Errorf("Expected degraded gauge 1, got %v", got)
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.Write("class", "engine")
	r.Fallback("class", "save")
	r.BatchItem("deleted", true)
	r.SetDegraded(false)
	r.Request("GET", "/health", 200, time.Millisecond)
}

func TestRecorder_Requests(t *testing.T) {
	r := NewRecorder()
	r.Request("POST", "/api/v1/classes", 201, 5*time.Millisecond)
	r.Request("POST", "/api/v1/classes", 400, time.Millisecond)

	if got := testutil.CollectAndCount(r.requests); got != 2 {
		t.Errorf("Expected 2 request series, got %d", got)
	}
}
