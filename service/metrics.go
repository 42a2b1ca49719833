package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the workload and collection counters exported on /metrics.
type Metrics struct {
	Ops         *prometheus.CounterVec
	EmptyPolls  *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	Pending     *prometheus.GaugeVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lfcore",
			Name:      "ops_total",
			Help:      "Successful operations by structure and op.",
		}, []string{"structure", "op"}),
		EmptyPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lfcore",
			Name:      "empty_polls_total",
			Help:      "Pop/dequeue calls that found the structure empty.",
		}, []string{"structure"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lfcore",
			Name:      "workload_runs_total",
			Help:      "Workload runs by structure and result.",
		}, []string{"structure", "result"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lfcore",
			Name:      "workload_run_seconds",
			Help:      "Wall time of workload runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"structure"}),
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lfcore",
			Name:      "reclaim_pending",
			Help:      "Retired nodes not yet reclaimed.",
		}, []string{"structure"}),
	}
	reg.MustRegister(m.Ops, m.EmptyPolls, m.Runs, m.RunDuration, m.Pending)
	return m
}
