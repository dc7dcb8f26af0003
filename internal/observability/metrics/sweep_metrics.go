package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SweepErrorTypeDeadlineExceeded = "deadline_exceeded"
	SweepErrorTypeDB               = "db"
	SweepErrorTypeUnknown          = "unknown"
)

// SweepMetrics captures reconciliation sweep health signals.
type SweepMetrics struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	reconciled prometheus.Counter
	skipped    prometheus.Counter
}

var (
	sweepMetricsOnce sync.Once
	sweepMetrics     *SweepMetrics
)

// Sweep returns the singleton sweep metrics registry.
func Sweep() *SweepMetrics {
	sweepMetricsOnce.Do(func() {
		sweepMetrics = newSweepMetrics(prometheus.DefaultRegisterer)
	})
	return sweepMetrics
}

// ResetSweepMetricsForTest resets the sweep metrics singleton for tests.
func ResetSweepMetricsForTest() {
	sweepMetricsOnce = sync.Once{}
	sweepMetrics = nil
}

func newSweepMetrics(registerer prometheus.Registerer) *SweepMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &SweepMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agencydesk_sweep_runs_total",
			Help: "Reconciliation sweep runs by job.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agencydesk_sweep_duration_seconds",
			Help:    "Reconciliation sweep latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agencydesk_sweep_errors_total",
			Help: "Reconciliation sweep errors by job and type.",
		}, []string{"job", "type"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agencydesk_sweep_clients_reconciled_total",
			Help: "Clients whose tier state changed during a sweep.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agencydesk_sweep_clients_unchanged_total",
			Help: "Clients already up to date during a sweep.",
		}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.duration, m.errors, m.reconciled, m.skipped} {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

func (m *SweepMetrics) IncRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *SweepMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SweepMetrics) IncError(job string, err error) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(job, classifySweepError(err)).Inc()
}

func (m *SweepMetrics) IncReconciled() {
	if m == nil {
		return
	}
	m.reconciled.Inc()
}

func (m *SweepMetrics) IncUnchanged() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func classifySweepError(err error) string {
	if err == nil {
		return SweepErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SweepErrorTypeDeadlineExceeded
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, gorm.ErrInvalidTransaction) || errors.Is(err, gorm.ErrRecordNotFound) {
		return SweepErrorTypeDB
	}
	return SweepErrorTypeUnknown
}
