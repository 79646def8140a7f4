// Package metrics exposes relay counters and upstream latency to Prometheus.
//
// All Collector methods are safe to call on a nil *Collector.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zjx20/gemini-relay/gemini"
)

const namespace = "gemini_relay"

// Chat outcomes.
const (
	StatusSuccess    = "success"
	StatusFallback   = "fallback"
	StatusBadRequest = "bad_request"
	StatusError      = "upstream_error"
)

type Collector struct {
	registry *prometheus.Registry

	chatRequests     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	conversations    prometheus.Gauge
	evictions        prometheus.Counter
}

// NewCollector registers the relay metrics on registry, or on a fresh
// registry with Go and process collectors when registry is nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	c := &Collector{
		registry: registry,
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of upstream Gemini calls.",
			// LLM latencies: 100ms to 30s
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"operation"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed upstream Gemini calls by kind.",
		}, []string{"operation", "kind"}),
		conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversations",
			Help:      "Conversations currently held in memory.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_evictions_total",
			Help:      "Turns dropped from conversation windows.",
		}),
	}
	registry.MustRegister(c.chatRequests, c.upstreamDuration, c.upstreamErrors, c.conversations, c.evictions)
	return c
}

func (c *Collector) RecordChat(status string) {
	if c == nil {
		return
	}
	c.chatRequests.WithLabelValues(status).Inc()
}

// ObserveUpstream records one upstream call. err classifies the failure.
func (c *Collector) ObserveUpstream(operation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.upstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		c.upstreamErrors.WithLabelValues(operation, errorKind(err)).Inc()
	}
}

func errorKind(err error) string {
	var apiErr *gemini.APIError
	switch {
	case errors.As(err, &apiErr):
		return "api"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}

func (c *Collector) SetConversations(n int) {
	if c == nil {
		return
	}
	c.conversations.Set(float64(n))
}

func (c *Collector) AddEvictions(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.evictions.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
