package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder holds the store and batch collectors. Each Recorder owns its
// registry so tests can build as many as they need.
type Recorder struct {
	Registry *prometheus.Registry

	writes    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	batch     *prometheus.CounterVec
	degraded  prometheus.Gauge
	requests  *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Store mutations by entity and the backend that captured them.",
		}, []string{"entity", "backend"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "store",
			Name:      "fallbacks_total",
			Help:      "Engine failures recovered through the snapshot store.",
		}, []string{"entity", "op"}),
		batch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Processed batch items by change kind and outcome.",
		}, []string{"kind", "outcome"}),
		degraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roster",
			Subsystem: "store",
			Name:      "degraded",
			Help:      "1 while writes are landing in the snapshot store instead of the engine.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roster",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	r.Registry.MustRegister(r.writes, r.fallbacks, r.batch, r.degraded, r.requests)
	r.Registry.MustRegister(collectors.NewGoCollector())
	return r
}

func (r *Recorder) Write(entity, backend string) {
	if r == nil {
		return
	}
	r.writes.WithLabelValues(entity, backend).Inc()
}

func (r *Recorder) Fallback(entity, op string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(entity, op).Inc()
}

func (r *Recorder) BatchItem(kind string, success bool) {
	if r == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.batch.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) SetDegraded(degraded bool) {
	if r == nil {
		return
	}
	if degraded {
		r.degraded.Set(1)
	} else {
		r.degraded.Set(0)
	}
}

func (r *Recorder) Request(method, route string, status int, latency time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}
