package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/cortexuvula/lfgbot/internal/journal"
	"github.com/cortexuvula/lfgbot/internal/lfg"
	"github.com/go-chi/chi/v5"
)

// adminUserID is recorded as the acting user for sessions ended over the API.
const adminUserID = "admin-api"

// statusResponse is the JSON body for GET /api/v1/status.
type statusResponse struct {
	Uptime           string  `json:"uptime"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	ActiveSessions   int     `json:"active_sessions"`
	DiscordConnected bool    `json:"discord_connected"`
	JournalEvents    int     `json:"journal_events"`
	MemoryMB         float64 `json:"memory_mb"`
	Goroutines       int     `json:"goroutines"`
	Version          string  `json:"version"`
	BuildTime        string  `json:"build_time"`
	GitCommit        string  `json:"git_commit"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(a.deps.StartTime)

	resp := statusResponse{
		Uptime:         uptime.Round(time.Second).String(),
		UptimeSeconds:  uptime.Seconds(),
		ActiveSessions: a.deps.Dispatcher.Registry().Len(),
		MemoryMB:       float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:     runtime.NumGoroutine(),
		Version:        a.deps.Version,
		BuildTime:      a.deps.BuildTime,
		GitCommit:      a.deps.GitCommit,
	}
	if a.deps.Gateway != nil {
		resp.DiscordConnected = a.deps.Gateway.Connected()
	}
	if a.deps.Journal != nil {
		resp.JournalEvents = a.deps.Journal.Len()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := a.deps.Dispatcher.Registry().Sessions()
	views := make([]lfg.View, len(sessions))
	for i, s := range sessions {
		views[i] = lfg.Render(s)
	}
	writeJSON(w, http.StatusOK, views)
}

// sessionResponse is the JSON body for GET /api/v1/sessions/{contextID}.
type sessionResponse struct {
	lfg.View
	CreatedAt time.Time `json:"created_at"`
	Ready     []string  `json:"ready"`
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.deps.Dispatcher.Registry().GetSession(chi.URLParam(r, "contextID"))
	if err != nil {
		writeError(w, err)
		return
	}
	ready := s.ReadyActivities()
	if ready == nil {
		ready = []string{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		View:      lfg.Render(s),
		CreatedAt: s.CreatedAt(),
		Ready:     ready,
	})
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	s, err := a.deps.Dispatcher.End(r.Context(), lfg.EndCommand{
		ContextID:  contextID,
		UserID:     adminUserID,
		Privileged: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("session ended via admin API", "context_id", contextID, "session_id", s.ID())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended", "session_id": s.ID()})
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.deps.Journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("event journal disabled"))
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	f := journal.Filter{
		ContextID: r.URL.Query().Get("context"),
		Kind:      lfg.EventKind(r.URL.Query().Get("kind")),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			f.Since = t
		}
	}

	writeJSON(w, http.StatusOK, a.deps.Journal.Entries(limit, f))
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}

	if a.deps.ReloadFunc == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("reload not available"))
		return
	}

	if err := a.deps.ReloadFunc(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// writeError maps core errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, lfg.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, lfg.ErrAlreadyExists), errors.Is(err, lfg.ErrFull):
		code = http.StatusConflict
	case errors.Is(err, lfg.ErrInvalidBounds), errors.Is(err, lfg.ErrInvalidName), errors.Is(err, lfg.ErrActivityLimit):
		code = http.StatusBadRequest
	case errors.Is(err, lfg.ErrForbidden):
		code = http.StatusForbidden
	}
	writeJSON(w, code, map[string]string{"error": err.Error(), "kind": lfg.ErrorKind(err)})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// requireJSON checks that the Content-Type header is application/json.
// Returns false (and writes an error response) if the check fails.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "application/json" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody("Content-Type must be application/json"))
		return false
	}
	return true
}
