package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cortexuvula/lfgbot/internal/config"
	"github.com/cortexuvula/lfgbot/internal/journal"
	"github.com/cortexuvula/lfgbot/internal/lfg"
	"github.com/cortexuvula/lfgbot/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Gateway reports whether the Discord gateway connection is up.
type Gateway interface {
	Connected() bool
}

// Dependencies holds all injected dependencies for the admin API.
type Dependencies struct {
	Dispatcher *lfg.Dispatcher
	Journal    *journal.Journal
	Feed       http.Handler // live event stream, nil disables it
	Gateway    Gateway
	Version    string
	BuildTime  string
	GitCommit  string
	StartTime  time.Time
	ReloadFunc func() error
	GetConfig  func() *config.Config
}

// API provides HTTP handlers for the loopback admin interface.
type API struct {
	deps Dependencies
}

// New creates a new API instance.
func New(deps Dependencies) *API {
	return &API{deps: deps}
}

// Handler returns the router for /api/v1/ endpoints.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(a.requireToken)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/status", a.handleStatus)
		api.Get("/sessions", a.handleSessions)
		api.Get("/sessions/{contextID}", a.handleSession)
		api.Delete("/sessions/{contextID}", a.handleEndSession)
		api.Get("/events", a.handleEvents)
		if a.deps.Feed != nil {
			api.Handle("/events/stream", a.deps.Feed)
		}
		api.Post("/reload", a.handleReload)
	})
	return r
}

// requireToken enforces security.admin_token when one is configured. The
// token is read per request so a SIGHUP reload takes effect immediately.
func (a *API) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token security.AdminToken
		if a.deps.GetConfig != nil {
			token = security.AdminToken(a.deps.GetConfig().Security.AdminToken)
		}
		if !token.Authorize(r.Header.Get("Authorization")) {
			slog.Warn("admin request rejected: bad token",
				"client_ip", security.ClientIP(r.RemoteAddr),
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
			)
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
