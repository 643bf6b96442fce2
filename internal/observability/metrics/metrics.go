// Package metrics collects Prometheus metrics for the session guard and the notification relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result constants for metric labels.
const (
	ResultAuthenticated   = "authenticated"
	ResultUnauthenticated = "unauthenticated"
	ResultStale           = "stale"
)

// Drop reasons for notifications that never reach the queue or a subscriber.
const (
	DropMalformed      = "malformed"
	DropDetached       = "detached"
	DropSlowSubscriber = "slow_subscriber"
	// DropJournalBacklog counts notifications delivered but never journaled.
	DropJournalBacklog = "journal_backlog"
)

// SessionRecorder is the metrics surface used by the session guard.
type SessionRecorder interface {
	RecordResolution(result, errorClass string)
}

// RelayRecorder is the metrics surface used by the notification relay.
type RelayRecorder interface {
	RecordChannelEvent(kind string)
	RecordNotification()
	RecordDropped(reason string)
	SetSubscribers(n int)
	SetMounted(mounted bool)
}

// Collector implements SessionRecorder and RelayRecorder on Prometheus.
type Collector struct {
	resolutions   *prometheus.CounterVec
	channelEvents *prometheus.CounterVec
	notifications prometheus.Counter
	dropped       *prometheus.CounterVec
	subscribers   prometheus.Gauge
	mounted       prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desa_admin_session_resolutions_total",
			Help: "Session resolutions by outcome",
		}, []string{"result", "error_class"}),
		channelEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desa_admin_channel_events_total",
			Help: "Push channel events received by kind",
		}, []string{"kind"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "desa_admin_notifications_total",
			Help: "Notifications accepted into the relay queue",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desa_admin_notifications_dropped_total",
			Help: "Notifications dropped by reason",
		}, []string{"reason"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "desa_admin_relay_subscribers",
			Help: "Active notification subscribers",
		}),
		mounted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "desa_admin_relay_mounted",
			Help: "1 while the relay holds a push channel",
		}),
	}

	reg.MustRegister(
		c.resolutions,
		c.channelEvents,
		c.notifications,
		c.dropped,
		c.subscribers,
		c.mounted,
	)
	return c
}

func (c *Collector) RecordResolution(result, errorClass string) {
	c.resolutions.WithLabelValues(result, errorClass).Inc()
}

func (c *Collector) RecordChannelEvent(kind string) {
	c.channelEvents.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordNotification() {
	c.notifications.Inc()
}

func (c *Collector) RecordDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

func (c *Collector) SetSubscribers(n int) {
	c.subscribers.Set(float64(n))
}

func (c *Collector) SetMounted(mounted bool) {
	if mounted {
		c.mounted.Set(1)
		return
	}
	c.mounted.Set(0)
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
