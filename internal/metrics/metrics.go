// Package metrics provides settlement engine metrics collection.
// It wraps Prometheus collectors for reconcile runs, discarded input edges,
// out-of-band settlement changes and periodic re-netting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Reconcile results used as the "result" label.
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Collector provides settlement metrics collection.
type Collector struct {
	registry *prometheus.Registry

	reconcileTotal     *prometheus.CounterVec
	reconcileLatency   *prometheus.HistogramVec
	settlementsWritten *prometheus.CounterVec
	edgesDiscarded     *prometheus.CounterVec
	outOfBandTotal     *prometheus.CounterVec
	renetRuns          *prometheus.CounterVec
	renetGroups        prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "splitslice"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "total",
			Help:      "Total number of reconcile runs by scope kind and result",
		},
		[]string{"kind", "result"},
	)

	c.reconcileLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Time taken by a reconcile run, lock to commit",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"kind", "result"},
	)

	c.settlementsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "settlements_written_total",
			Help:      "Total number of settlement rows written by reconcile runs",
		},
		[]string{"kind"},
	)

	c.edgesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "edges_discarded_total",
			Help:      "Total number of input edges discarded as malformed or out of scope",
		},
		[]string{"kind", "reason"},
	)

	c.outOfBandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlements",
			Name:      "out_of_band_total",
			Help:      "Total number of settlement changes made outside a reconcile run",
		},
		[]string{"op", "result"},
	)

	c.renetRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total number of periodic re-netting passes",
		},
		[]string{"result"},
	)

	c.renetGroups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_run_groups",
			Help:      "Number of groups visited by the last re-netting pass",
		},
	)

	c.registry.MustRegister(
		c.reconcileTotal,
		c.reconcileLatency,
		c.settlementsWritten,
		c.edgesDiscarded,
		c.outOfBandTotal,
		c.renetRuns,
		c.renetGroups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the registry served on /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordReconcile records one reconcile run.
func (c *Collector) RecordReconcile(kind, result string, duration time.Duration, written int) {
	c.reconcileTotal.WithLabelValues(kind, result).Inc()
	c.reconcileLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	if written > 0 {
		c.settlementsWritten.WithLabelValues(kind).Add(float64(written))
	}
}

// RecordEdgesDiscarded counts input edges dropped before netting.
func (c *Collector) RecordEdgesDiscarded(kind, reason string, n int) {
	if n > 0 {
		c.edgesDiscarded.WithLabelValues(kind, reason).Add(float64(n))
	}
}

// RecordOutOfBand records a mark-settled, reverse insertion or settle-all.
func (c *Collector) RecordOutOfBand(op string, err error) {
	c.outOfBandTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

// RecordRenet records one periodic re-netting pass.
func (c *Collector) RecordRenet(groups int, err error) {
	c.renetRuns.WithLabelValues(resultLabel(err)).Inc()
	c.renetGroups.Set(float64(groups))
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// NoOpCollector discards all metrics.
type NoOpCollector struct{}

// NewNoOpCollector returns a collector that records nothing.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordReconcile(kind, result string, d time.Duration, written int) {}
func (*NoOpCollector) RecordEdgesDiscarded(kind, reason string, n int)                   {}
func (*NoOpCollector) RecordOutOfBand(op string, err error)                              {}
func (*NoOpCollector) RecordRenet(groups int, err error)                                 {}
