package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes Prometheus collectors for reconciliation activity.
type Metrics struct {
	reconciled      *prometheus.CounterVec
	iterationErrors prometheus.Counter
	runningRuns     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wo",
			Subsystem: "monitor",
			Name:      "reconciled_runs_total",
			Help:      "Agent runs reconciled to a terminal status, by outcome.",
		}, []string{"outcome"}),
		iterationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wo",
			Subsystem: "monitor",
			Name:      "errors_total",
			Help:      "Reconciliation failures for a single run or a whole iteration.",
		}),
		runningRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wo",
			Subsystem: "monitor",
			Name:      "running_runs",
			Help:      "Runs marked running at the start of the last iteration.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.reconciled, m.iterationErrors, m.runningRuns)
	}
	return m
}

func (m *Metrics) incReconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incErrors() {
	if m == nil {
		return
	}
	m.iterationErrors.Inc()
}

func (m *Metrics) setRunning(n int) {
	if m == nil {
		return
	}
	m.runningRuns.Set(float64(n))
}
