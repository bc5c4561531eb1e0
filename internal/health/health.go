package health

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/cortexuvula/lfgbot/internal/metrics"
)

// Response is the JSON response from the /health endpoint.
type Response struct {
	Status           string   `json:"status"`
	Uptime           string   `json:"uptime"`
	ActiveSessions   int      `json:"active_sessions"`
	DiscordConnected bool     `json:"discord_connected"`
	Version          string   `json:"version"`
	Timestamp        string   `json:"timestamp"`
	Details          *Details `json:"details,omitempty"`
}

// Details contains extended health information.
type Details struct {
	Goroutines int     `json:"goroutines"`
	MemoryMB   float64 `json:"memory_mb"`
}

// Gateway reports whether the chat gateway connection is up.
type Gateway interface {
	Connected() bool
}

// SessionCounter reports the number of open sessions.
type SessionCounter interface {
	Len() int
}

// Handler serves the health check endpoint.
type Handler struct {
	startTime time.Time
	gateway   Gateway
	sessions  SessionCounter
	metrics   *metrics.Metrics // optional, nil if metrics disabled
	version   string
	detailed  bool
}

// NewHandler creates a new health check handler.
func NewHandler(gw Gateway, sessions SessionCounter, version string, detailed bool) *Handler {
	return &Handler{
		startTime: time.Now(),
		gateway:   gw,
		sessions:  sessions,
		version:   version,
		detailed:  detailed,
	}
}

// SetMetrics sets the optional Prometheus metrics.
func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// ServeHTTP handles health check requests.
// The health listener runs on loopback so local tools (systemd, Prometheus)
// can poll it without any Discord involvement.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connected := h.gateway.Connected()

	if h.metrics != nil {
		h.metrics.SetDiscordConnected(connected)
	}

	status := "ok"
	httpCode := http.StatusOK
	if !connected {
		status = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	resp := Response{
		Status:           status,
		Uptime:           time.Since(h.startTime).Round(time.Second).String(),
		ActiveSessions:   h.sessions.Len(),
		DiscordConnected: connected,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	if h.detailed {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		resp.Version = h.version
		resp.Details = &Details{
			Goroutines: runtime.NumGoroutine(),
			MemoryMB:   float64(memStats.Alloc) / 1024 / 1024,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(resp)
}
