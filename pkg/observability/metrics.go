package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/constraintflow/pkg/compiler"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cflow"

// Metrics holds the monitor and compiler collectors.
type Metrics struct {
	Binds       prometheus.Counter
	Advances    *prometheus.CounterVec
	Statuses    *prometheus.CounterVec
	Ignored     prometheus.Counter
	Rejected    prometheus.Counter
	Resets      *prometheus.CounterVec
	Constraints prometheus.Gauge
	Compiles    *prometheus.CounterVec
	CompileTime prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Binds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_binds_total",
			Help:      "Total number of automata bound to the monitor",
		}),
		Advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_advances_total",
			Help:      "Activities that advanced the automaton",
		}, []string{"activity_id"}),
		Statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraint_status_total",
			Help:      "Constraint status events emitted",
		}, []string{"constraint_type", "status"}),
		Ignored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_ignored_total",
			Help:      "Activities not expected from the current state",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_rejected_total",
			Help:      "Available activities with no transition",
		}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_resets_total",
			Help:      "Cursor resets by reason",
		}, []string{"reason"}),
		Constraints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_constraints",
			Help:      "Constraints in the bound model",
		}),
		Compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_requests_total",
			Help:      "Compiler round-trips by outcome",
		}, []string{"outcome", "code"}),
		CompileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of compiler round-trips",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Binds, m.Advances, m.Statuses, m.Ignored, m.Rejected,
			m.Resets, m.Constraints, m.Compiles, m.CompileTime,
		)
	}
	return m
}

// Hooks returns monitor hooks recording into m.
func (m *Metrics) Hooks() domain.MonitorHooks {
	return domain.MonitorHooks{
		OnBind: func(_ context.Context, _ string, constraints int) {
			m.Binds.Inc()
			m.Constraints.Set(float64(constraints))
		},
		OnAdvance: func(_ context.Context, e *domain.AdvanceEvent) {
			m.Advances.WithLabelValues(e.ActivityID).Inc()
		},
		OnStatus: func(_ context.Context, e *domain.StatusEvent) {
			m.Statuses.WithLabelValues(string(e.ConstraintType), string(e.Status)).Inc()
		},
		OnIgnored: func(context.Context, string, string) {
			m.Ignored.Inc()
		},
		OnRejected: func(context.Context, string, string) {
			m.Rejected.Inc()
		},
		OnReset: func(_ context.Context, reason string) {
			m.Resets.WithLabelValues(reason).Inc()
		},
	}
}

// CompileObserver returns a compiler.Observer recording into m.
func (m *Metrics) CompileObserver() compiler.Observer {
	return func(_ context.Context, elapsed time.Duration, err error) {
		m.CompileTime.Observe(elapsed.Seconds())
		outcome, code := "success", strconv.Itoa(http.StatusOK)
		if err != nil {
			outcome, code = "failure", "0"
			var ce *compiler.CompileError
			if errors.As(err, &ce) && ce.StatusCode != 0 {
				code = strconv.Itoa(ce.StatusCode)
			}
		}
		m.Compiles.WithLabelValues(outcome, code).Inc()
	}
}
