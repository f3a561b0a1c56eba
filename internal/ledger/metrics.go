package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SyncRuns            *prometheus.CounterVec
	SettlementsRecorded prometheus.Counter
	SettlementsSkipped  prometheus.Counter
	RecomputePasses     *prometheus.CounterVec
	SyncDuration        prometheus.Histogram
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_sync_runs_total",
				Help: "Total settlement sync runs.",
			},
			[]string{"status"},
		),
		SettlementsRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_settlements_recorded_total",
				Help: "Total ledger entries recorded from settlements.",
			},
		),
		SettlementsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_settlements_skipped_total",
				Help: "Total settlement candidates skipped as duplicate or invalid.",
			},
		),
		RecomputePasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_recompute_passes_total",
				Help: "Total running-balance recomputation passes.",
			},
			[]string{"status"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_sync_duration_seconds",
				Help:    "Settlement sync duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.SyncRuns,
		m.SettlementsRecorded,
		m.SettlementsSkipped,
		m.RecomputePasses,
		m.SyncDuration,
	)
	return m
}

func (m *Metrics) incSyncRun(status string) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) incRecorded() {
	if m == nil {
		return
	}
	m.SettlementsRecorded.Inc()
}

func (m *Metrics) addSkipped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.SettlementsSkipped.Add(float64(n))
}

func (m *Metrics) incRecompute(status string) {
	if m == nil {
		return
	}
	m.RecomputePasses.WithLabelValues(status).Inc()
}

func (m *Metrics) observeSync(d time.Duration) {
	if m == nil {
		return
	}
	m.SyncDuration.Observe(d.Seconds())
}
