// Package metrics exposes Prometheus instruments for the invitation pipeline.
package metrics

import (
	"net/http"

	"invites.fest2.fun/pkg/notify"
	"invites.fest2.fun/pkg/workerpool"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invitations"

// Metrics owns its registry so several instances can coexist (tests).
type Metrics struct {
	Registry *prometheus.Registry

	Created              *prometheus.CounterVec
	PipelineDuration     prometheus.Histogram
	Transitions          *prometheus.CounterVec
	Emails               *prometheus.CounterVec
	UploadAttempts       prometheus.Counter
	UploadRetries        prometheus.Counter
	AggregationConflicts prometheus.Counter
	CheckIns             *prometheus.CounterVec
	ZoneAccess           *prometheus.CounterVec
}

// New registers every instrument plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Invitation units processed by the creation pipeline, by result.",
		}, []string{"result"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent producing one invitation's artifacts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle operations applied to invitations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Invitation emails dispatched, by result.",
		}, []string{"result"}),
		UploadAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_attempts_total",
			Help:      "Object store upload attempts, including retries.",
		}),
		UploadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_retries_total",
			Help:      "Object store uploads that failed and were retried.",
		}),
		AggregationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_conflicts_total",
			Help:      "Optimistic version conflicts hit while merging aggregate counters.",
		}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Wristband assignments at the door, by result.",
		}, []string{"result"}),
		ZoneAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_access_total",
			Help:      "Zone access decisions, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Created, m.PipelineDuration, m.Transitions, m.Emails,
		m.UploadAttempts, m.UploadRetries, m.AggregationConflicts,
		m.CheckIns, m.ZoneAccess,
	)
	return m
}

// WatchPool exports a pool's busy workers and capacity.
func (m *Metrics) WatchPool(p *workerpool.Pool) {
	labels := prometheus.Labels{"pool": p.Name()}
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_active_workers", Help: "Tasks currently running in the pool.", ConstLabels: labels,
		}, func() float64 { return float64(p.Active()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_size", Help: "Configured pool concurrency.", ConstLabels: labels,
		}, func() float64 { return float64(p.Size()) }),
	)
}

// WatchBus exports how many notifications were dropped for slow subscribers.
func (m *Metrics) WatchBus(b *notify.Bus) {
	m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Name: "notifications_dropped_total", Help: "Events skipped because a subscriber buffer was full.",
	}, func() float64 { return float64(b.Dropped()) }))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
