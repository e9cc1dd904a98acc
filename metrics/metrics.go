// Package metrics exposes Prometheus collectors for the provisioning service
// and the HTTP server that serves them.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	collectionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "collections",
			Name:      "requests_total",
			Help:      "Total number of create collection requests by synchronous result",
		},
		[]string{"result"},
	)

	workflowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Total number of provisioning stage transitions by target stage",
		},
		[]string{"stage"},
	)

	workflowFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "workflow",
			Name:      "failures_total",
			Help:      "Total number of failed provisioning requests by error kind",
		},
		[]string{"kind"},
	)

	workflowInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: "workflow",
			Name:      "inflight",
			Help:      "Number of provisioning requests waiting on the issuer",
		},
	)

	issuerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: "issuer",
			Name:      "call_duration_seconds",
			Help:      "Time from submitting an issuer call to its completion",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"operation"},
	)
)

// RecordRequest counts a create request by result ("accepted" or an error kind).
func RecordRequest(result string) {
	collectionRequestsTotal.WithLabelValues(result).Inc()
}

// RecordTransition counts a request entering stage.
func RecordTransition(stage string) {
	workflowTransitionsTotal.WithLabelValues(stage).Inc()
}

// RecordFailure counts a request that ended in the Failed stage.
func RecordFailure(kind string) {
	workflowFailuresTotal.WithLabelValues(kind).Inc()
}

// InflightAdd adjusts the number of requests waiting on the issuer.
func InflightAdd(delta int) {
	workflowInflight.Add(float64(delta))
}

// ObserveIssuerCall records how long an issuer call took to complete.
func ObserveIssuerCall(operation string, d time.Duration) {
	issuerCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server
}

// New creates a metrics server listening on addr. Metric names are prefixed with namespace.
func New(namespace string, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	prefixed := prometheus.WrapRegistererWithPrefix(sanitizeNamespace(namespace)+"_", registry)

	for _, c := range []prometheus.Collector{
		collectionRequestsTotal,
		workflowTransitionsTotal,
		workflowFailuresTotal,
		workflowInflight,
		issuerCallDuration,
	} {
		if err := prefixed.Register(c); err != nil {
			return nil, err
		}
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry: registry,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Handler returns the /metrics handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func sanitizeNamespace(namespace string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(namespace)
}
