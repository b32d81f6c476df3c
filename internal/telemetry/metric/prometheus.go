package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lobbysync"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Refresh metrics
	Polls        *prometheus.CounterVec // kind, result
	PollsSkipped *prometheus.CounterVec // reason

	// Push metrics
	PushEvents    *prometheus.CounterVec // kind
	PushConnected prometheus.Gauge

	// Reconciliation metrics
	Snapshots *prometheus.CounterVec // source, result

	// Queue metrics
	Mutations        *prometheus.CounterVec   // operation, outcome
	MutationDuration *prometheus.HistogramVec // operation
	QueueDepth       prometheus.Gauge

	// Event bus metrics
	EventsDropped *prometheus.CounterVec // event
}

// NewRegistry creates a registry with every metric registered, plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "polls_total",
			Help:      "Polls issued against the lobby service.",
		}, []string{"kind", "result"}),
		PollsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "polls_skipped_total",
			Help:      "Scheduler ticks that did not poll.",
		}, []string{"reason"}),
		PushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "events_total",
			Help:      "Events delivered by the push channel.",
		}, []string{"kind"}),
		PushConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "connected",
			Help:      "1 while the push channel is connected.",
		}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "snapshots_total",
			Help:      "Candidate snapshots by delivery source and result.",
		}, []string{"source", "result"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "mutations_total",
			Help:      "Queued mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		MutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "mutation_duration_seconds",
			Help:      "Time from start to completion of a mutation.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Mutations waiting to start.",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events not delivered because a subscriber was full.",
		}, []string{"event"}),
	}

	r.reg.MustRegister(
		r.Polls, r.PollsSkipped,
		r.PushEvents, r.PushConnected,
		r.Snapshots,
		r.Mutations, r.MutationDuration, r.QueueDepth,
		r.EventsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Register adds an extra collector to the registry.
func (r *Registry) Register(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.reg.Register(c)
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObservePoll counts a poll of the given kind (lobby, list, launch).
func (r *Registry) ObservePoll(kind, result string) {
	if r == nil {
		return
	}
	r.Polls.WithLabelValues(kind, result).Inc()
}

// SkipPoll counts a tick that did not poll.
func (r *Registry) SkipPoll(reason string) {
	if r == nil {
		return
	}
	r.PollsSkipped.WithLabelValues(reason).Inc()
}

// ObservePush counts a push channel event.
func (r *Registry) ObservePush(kind string) {
	if r == nil {
		return
	}
	r.PushEvents.WithLabelValues(kind).Inc()
}

// SetPushConnected records push connectivity.
func (r *Registry) SetPushConnected(connected bool) {
	if r == nil {
		return
	}
	if connected {
		r.PushConnected.Set(1)
	} else {
		r.PushConnected.Set(0)
	}
}

// ObserveSnapshot counts a candidate snapshot.
func (r *Registry) ObserveSnapshot(source, result string) {
	if r == nil {
		return
	}
	r.Snapshots.WithLabelValues(source, result).Inc()
}

// ObserveMutation counts a finished mutation. A zero duration means the
// mutation never started and is not added to the histogram.
func (r *Registry) ObserveMutation(operation, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.Mutations.WithLabelValues(operation, outcome).Inc()
	if d > 0 {
		r.MutationDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// SetQueueDepth records the number of waiting mutations.
func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(n))
}

// DropEvent counts an event dropped for a slow subscriber.
func (r *Registry) DropEvent(event string) {
	if r == nil {
		return
	}
	r.EventsDropped.WithLabelValues(event).Inc()
}
