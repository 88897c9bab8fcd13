package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	ResultGranted = "granted"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// OpsLock groups the ops lock acquisition metrics.
type OpsLock struct {
	// Acquisitions counts Acquire calls by result.
	Acquisitions *prometheus.CounterVec
	// Latency observes store round trips per Acquire call.
	Latency prometheus.Histogram
}

// NewOpsLock builds unregistered ops lock metrics.
func NewOpsLock() *OpsLock {
	return &OpsLock{
		Acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autonomax_ops_lock_acquire_total",
			Help: "Total number of ops lock acquisitions by result",
		}, []string{"result"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autonomax_ops_lock_acquire_seconds",
			Help:    "Ops lock acquisition latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register adds the metrics to reg.
func (m *OpsLock) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Acquisitions, m.Latency)
}

// NewRegistry creates a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
