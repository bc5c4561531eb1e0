package metrics

import (
	"github.com/cortexuvula/lfgbot/internal/lfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for lfgbot.
type Metrics struct {
	SessionsActive      prometheus.Gauge
	SessionsTotal       prometheus.Counter
	ActionsTotal        *prometheus.CounterVec
	ReadyEventsTotal    prometheus.Counter
	NotifyFailuresTotal prometheus.Counter
	DiscordConnected    prometheus.Gauge
	RateLimitedTotal    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lfgbot_sessions_active",
			Help: "Current open LFG sessions",
		}),
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lfgbot_sessions_total",
			Help: "Total LFG sessions started",
		}),
		ActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lfgbot_actions_total",
			Help: "Total dispatched LFG actions by outcome",
		}, []string{"action", "outcome"}),
		ReadyEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lfgbot_ready_events_total",
			Help: "Total activities that reached their minimum player count",
		}),
		NotifyFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lfgbot_notify_failures_total",
			Help: "Total ready notifications that could not be delivered",
		}),
		DiscordConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lfgbot_discord_connected",
			Help: "Discord gateway connection (1=up, 0=down)",
		}),
		RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lfgbot_rate_limited_total",
			Help: "Total interactions rejected by the rate limiter",
		}),
	}
}

// Observe records a dispatcher event. It satisfies lfg.Observer.
func (m *Metrics) Observe(ev lfg.Event) {
	switch ev.Kind {
	case lfg.EventSessionStarted:
		m.SessionsTotal.Inc()
		m.SessionsActive.Inc()
	case lfg.EventSessionEnded:
		m.SessionsActive.Dec()
	case lfg.EventActivityReady:
		m.ReadyEventsTotal.Inc()
		if ev.Outcome == "notify_failed" {
			m.NotifyFailuresTotal.Inc()
		}
		// the triggering join is already counted
		return
	}
	m.ActionsTotal.WithLabelValues(ev.Action, ev.Outcome).Inc()
}

// SetDiscordConnected updates the connection gauge.
func (m *Metrics) SetDiscordConnected(up bool) {
	if up {
		m.DiscordConnected.Set(1)
	} else {
		m.DiscordConnected.Set(0)
	}
}

// RateLimited counts one rejected interaction.
func (m *Metrics) RateLimited() {
	m.RateLimitedTotal.Inc()
}

// NotifyFailed counts a ready announcement that failed after the dispatcher
// had already handed it off.
func (m *Metrics) NotifyFailed() {
	m.NotifyFailuresTotal.Inc()
}
