package httpx

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sidesa/desa-admin/internal/ports"
)

// RouterServices groups the collaborators of the gateway router.
type RouterServices struct {
	Session SessionService
	Tracker RouteTracker
	Auth    ports.Authenticator
	// Feed and Journal are optional; without them the notification routes report unavailable.
	Feed    NotificationFeed
	Journal NotificationHistory
	Tokens  ports.TokenStore
	// Sessions issues and checks the browser session cookie. Without it no browser is signed in.
	Sessions *BrowserSessions
	// Upstream enables the /api/ proxy when set.
	Upstream *url.URL
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// LoginLimiter throttles POST /login when set.
	LoginLimiter *RateLimiter
	Upgrader     *websocket.Upgrader
	// CookieDomain scopes the CSRF cookie.
	CookieDomain string
	// AllowedOrigins may send state-changing requests besides the gateway's own origin.
	AllowedOrigins []string

	ReadyTimeout     time.Duration
	SubscriberBuffer int
	HistoryLimit     int
	Logger           *slog.Logger
}

// NewRouter builds the gateway handler.
func NewRouter(s RouterServices) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	health := &HealthHandler{Session: s.Session, Feed: s.Feed}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}

	protect := RequireSession(SessionGate{
		Session:      s.Session,
		Tracker:      s.Tracker,
		Sessions:     s.Sessions,
		ReadyTimeout: s.ReadyTimeout,
	})
	csrf := CSRFProtection(CSRFConfig{CookieDomain: s.CookieDomain, AllowedOrigins: s.AllowedOrigins})

	authH := &AuthHandlers{
		Session:  s.Session,
		Auth:     s.Auth,
		Tracker:  s.Tracker,
		Sessions: s.Sessions,
		Logger:   logger,
	}
	mux.Handle("GET /login", csrf(http.HandlerFunc(authH.LoginPage)))
	login := csrf(http.HandlerFunc(authH.Login))
	if s.LoginLimiter != nil {
		login = s.LoginLimiter.Middleware()(login)
	}
	mux.Handle("POST /login", login)
	mux.Handle("POST /logout", csrf(http.HandlerFunc(authH.Logout)))
	mux.Handle("GET /auth/status", csrf(http.HandlerFunc(authH.Status)))

	dash := &DashboardHandlers{Session: s.Session, Tracker: s.Tracker, Feed: s.Feed, Sessions: s.Sessions}
	mux.HandleFunc("GET /{$}", dash.Landing)
	mux.Handle("GET /dashboard", protect(http.HandlerFunc(dash.Dashboard)))

	notes := &NotificationHandlers{
		Feed:         s.Feed,
		Journal:      s.Journal,
		Buffer:       s.SubscriberBuffer,
		HistoryLimit: s.HistoryLimit,
		Upgrader:     s.Upgrader,
		Logger:       logger,
	}
	mux.Handle("GET /notifications", protect(http.HandlerFunc(notes.List)))
	mux.Handle("GET /notifications/stream", protect(http.HandlerFunc(notes.Stream)))
	mux.Handle("GET /notifications/ws", protect(http.HandlerFunc(notes.WebSocket)))
	mux.Handle("GET /notifications/history", protect(http.HandlerFunc(notes.History)))

	if s.Upstream != nil && s.Tokens != nil {
		mux.Handle("/api/", csrf(protect(NewAPIProxy(s.Upstream, s.Tokens, logger))))
	}

	var h http.Handler = mux
	h = BrowserDetection()(h)
	h = Logging(logger)(h)
	h = Recover(logger)(h)
	return h
}
