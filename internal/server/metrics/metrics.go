// Package metrics exposes Prometheus collectors for the sync pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsync"

// Edit outcomes.
const (
	EditCommitted     = "committed"
	EditRolledBack    = "rolled_back"
	EditConflict      = "conflict"
	EditStagingFailed = "staging_failed"
)

type Metrics struct {
	SequenceAllocations *prometheus.CounterVec
	SequenceValue       *prometheus.GaugeVec
	UploadBytes         prometheus.Counter
	Registrations       *prometheus.CounterVec
	Edits               *prometheus.CounterVec
	RestoreFailures     prometheus.Counter
	ReplicaFailures     *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg interface {
	prometheus.Registerer
	prometheus.Gatherer
}) *Metrics {
	m := &Metrics{
		SequenceAllocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sequence",
				Name:      "allocations_total",
				Help:      "Counter of values handed out per sequence.",
			}, []string{"name"}),
		SequenceValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sequence",
				Name:      "value",
				Help:      "Last value handed out per sequence.",
			}, []string{"name"}),
		UploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "bytes_total",
				Help:      "Bytes written by chunk uploads.",
			}),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Document registrations by result.",
			}, []string{"result"}),
		Edits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edits_total",
				Help:      "Edit transactions by outcome.",
			}, []string{"result"}),
		RestoreFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restore_failures_total",
				Help:      "Rollbacks whose staged files could not all be restored.",
			}),
		ReplicaFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "replica",
				Name:      "failures_total",
				Help:      "Failed replica operations.",
			}, []string{"op"}),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Bucketed histogram of HTTP request durations.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			}, []string{"route", "code"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SequenceAllocations,
		m.SequenceValue,
		m.UploadBytes,
		m.Registrations,
		m.Edits,
		m.RestoreFailures,
		m.ReplicaFailures,
		m.RequestDuration,
	)
	return m
}

// NewUnregistered is meant for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the exposition format for the collectors of m.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
