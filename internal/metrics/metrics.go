// Package metrics exposes Prometheus collectors fed from the event bus.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
)

// Metrics holds the collectors of one server. Each instance owns its
// registry so that tests and multiple servers do not share state.
type Metrics struct {
	registry *prometheus.Registry

	// httpRequests counts served HTTP requests by status code
	httpRequests *prometheus.CounterVec
	// httpDurations is a histogram of HTTP request latencies
	httpDurations prometheus.Histogram
	// operations counts executed operations by type and outcome
	operations *prometheus.CounterVec
	// operationDurations is a histogram of operation latencies by type
	operationDurations *prometheus.HistogramVec
	// graphqlErrors counts response errors
	graphqlErrors prometheus.Counter
	// fieldDurations is a histogram of resolver latencies by field
	fieldDurations *prometheus.HistogramVec
	// fieldErrors counts failed resolvers by field
	fieldErrors *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_api_requests_total",
				Help: "A counter for served requests",
			},
			[]string{"code"},
		),
		httpDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "http_response_duration_seconds",
			Help:    "A histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		}),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphql_operations_total",
				Help: "A counter for executed operations",
			},
			[]string{"type", "status"},
		),
		operationDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphql_operation_duration_seconds",
				Help:    "A histogram of operation latencies",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		graphqlErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphql_errors_total",
			Help: "A counter for errors reported in responses",
		}),
		fieldDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphql_field_duration_seconds",
				Help:    "A histogram of field resolver latencies",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"type", "field"},
		),
		fieldErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphql_field_errors_total",
				Help: "A counter for failed field resolvers",
			},
			[]string{"type", "field"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDurations,
		m.operations,
		m.operationDurations,
		m.graphqlErrors,
		m.fieldDurations,
		m.fieldErrors,
	)
	return m
}

// Subscribe feeds the collectors from bus until unsubscribe is called.
func (m *Metrics) Subscribe(bus *eventbus.Bus) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(bus, func(_ context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
			m.httpDurations.Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.GraphQLFinish) {
			status := "ok"
			switch {
			case e.Err != nil:
				status = "aborted"
			case len(e.Errors) > 0:
				status = "error"
			}
			m.operations.WithLabelValues(e.OperationType, status).Inc()
			m.operationDurations.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
			m.graphqlErrors.Add(float64(len(e.Errors)))
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.FieldFinish) {
			m.fieldDurations.WithLabelValues(e.ObjectType, e.Field).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.fieldErrors.WithLabelValues(e.ObjectType, e.Field).Inc()
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
