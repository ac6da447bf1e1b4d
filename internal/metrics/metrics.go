// Package metrics exposes the Prometheus counters and histograms nfs4d
// records per COMPOUND and per operation, grounded on the teacher's
// internal/telemetry metrics recorder: a nil-safe *Recorder so handlers and
// the server loop can call it unconditionally whether or not
// --metrics-addr was set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns every metric this server publishes. A nil *Recorder is
// valid and every method becomes a no-op, so callers never need a feature
// flag around metrics calls.
type Recorder struct {
	compoundTotal   *prometheus.CounterVec
	opTotal         *prometheus.CounterVec
	opDuration      *prometheus.HistogramVec
	readdirEntries  prometheus.Histogram
}

// New registers every metric against a fresh registry and returns a
// Recorder plus the http.Handler that serves it.
func New() (*Recorder, http.Handler) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Recorder{
		compoundTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nfs4d_compound_total",
			Help: "COMPOUND requests processed, labeled by final status.",
		}, []string{"status"}),
		opTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nfs4d_op_total",
			Help: "NFSv4 operations processed, labeled by opcode and status.",
		}, []string{"opcode", "status"}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nfs4d_op_duration_seconds",
			Help:    "Per-operation handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"opcode"}),
		readdirEntries: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nfs4d_readdir_entries",
			Help:    "Entries returned per READDIR reply.",
			Buckets: []float64{0, 1, 2, 5, 10, 50, 200, 1000},
		}),
	}
	return r, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveCompound(status string) {
	if r == nil {
		return
	}
	r.compoundTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) ObserveOp(opcode, status string, seconds float64) {
	if r == nil {
		return
	}
	r.opTotal.WithLabelValues(opcode, status).Inc()
	r.opDuration.WithLabelValues(opcode).Observe(seconds)
}

func (r *Recorder) ObserveReaddirEntries(n int) {
	if r == nil {
		return
	}
	r.readdirEntries.Observe(float64(n))
}
