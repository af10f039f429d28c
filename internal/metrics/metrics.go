// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Connections     prometheus.Gauge
	OnlineUsers     prometheus.Gauge
	MessagesRouted  *prometheus.CounterVec
	MessagesFailed  prometheus.Counter
	DeliveryFailed  *prometheus.CounterVec
	Previews        *prometheus.CounterVec
	ReactionToggles *prometheus.CounterVec
	EventsDropped   prometheus.Counter
}

// New registers every collector on a fresh registry. Pass withRuntime to add
// the Go and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chathub", Name: "connections",
			Help: "Live WebSocket connections.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chathub", Name: "online_users",
			Help: "Distinct users with at least one live connection.",
		}),
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chathub", Name: "messages_routed_total",
			Help: "Messages persisted and fanned out, by scope.",
		}, []string{"scope"}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chathub", Name: "messages_failed_total",
			Help: "Messages dropped because persistence failed.",
		}),
		DeliveryFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chathub", Name: "delivery_failures_total",
			Help: "Per-connection deliveries that could not be queued, by event.",
		}, []string{"event"}),
		Previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chathub", Name: "link_previews_total",
			Help: "Link preview outcomes.",
		}, []string{"outcome"}),
		ReactionToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chathub", Name: "reaction_toggles_total",
			Help: "Applied reaction toggles, by action.",
		}, []string{"action"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chathub", Name: "client_events_dropped_total",
			Help: "Inbound client events discarded by the rate limiter.",
		}),
	}
	reg.MustRegister(
		m.Connections, m.OnlineUsers, m.MessagesRouted, m.MessagesFailed,
		m.DeliveryFailed, m.Previews, m.ReactionToggles, m.EventsDropped,
	)
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetPresence records the registry's current size.
func (m *Metrics) SetPresence(users, connections int) {
	m.OnlineUsers.Set(float64(users))
	m.Connections.Set(float64(connections))
}

// Preview outcomes.
const (
	PreviewVideo   = "video"
	PreviewFetched = "fetched"
	PreviewCached  = "cached"
	PreviewNoImage = "no_image"
	PreviewFailed  = "failed"
	PreviewNoURL   = "no_url"
)

// Reaction toggle actions.
const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

// Message scopes.
const (
	ScopePublic  = "public"
	ScopePrivate = "private"
)
