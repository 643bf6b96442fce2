package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sidesa/desa-admin/config"
	httpx "github.com/sidesa/desa-admin/internal/http"
	"golang.org/x/time/rate"
)

// HTTPServerConfig contains configuration for the HTTP gateway.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// HTTPServer is the gateway server plus the resources that must stop with it.
type HTTPServer struct {
	Server  *http.Server
	limiter *httpx.RateLimiter
	logger  *slog.Logger
}

// BuildRouterServices maps the container onto the gateway's handler dependencies.
func BuildRouterServices(cfg *config.AppConfig, svc ServiceContainer, logger *slog.Logger) (httpx.RouterServices, error) {
	rs := httpx.RouterServices{
		Session:          svc.Session,
		Tracker:          svc.Tracker,
		Auth:             svc.Identity.Auth,
		Tokens:           svc.Tokens,
		Metrics:          svc.Observability.Handler,
		Sessions: &httpx.BrowserSessions{
			Store:        svc.Sessions,
			TTL:          cfg.Session.CookieTTL,
			CookieDomain: cfg.HTTP.CookieDomain,
			Logger:       logger,
		},
		Upgrader:         httpx.NewUpgrader(cfg.HTTP.AllowedOrigins),
		CookieDomain:     cfg.HTTP.CookieDomain,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		ReadyTimeout:     cfg.Session.ReadyTimeout,
		SubscriberBuffer: cfg.Notify.SubscriberBuffer,
		HistoryLimit:     cfg.Journal.HistoryLimit,
		Logger:           logger,
	}
	// Typed nils must not reach the interface fields.
	if svc.Relay != nil {
		rs.Feed = svc.Relay
	}
	if svc.Journal != nil {
		rs.Journal = svc.Journal
	}

	if raw := cfg.UpstreamURL(); raw != "" {
		upstream, err := url.Parse(raw)
		if err != nil {
			return httpx.RouterServices{}, fmt.Errorf("parse API upstream %q: %w", raw, err)
		}
		rs.Upstream = upstream
	}
	return rs, nil
}

// NewHTTPServer builds the gateway server. Call ListenAndServe to start it.
func NewHTTPServer(cfg *HTTPServerConfig) (*HTTPServer, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	services, err := BuildRouterServices(appCfg, cfg.Services, logger)
	if err != nil {
		return nil, err
	}
	limiter := httpx.NewRateLimiter(httpx.RateLimiterConfig{
		Rate:  rate.Limit(appCfg.Session.LoginRate),
		Burst: appCfg.Session.LoginBurst,
	}, logger)
	services.LoginLimiter = limiter

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	// No WriteTimeout: the notification stream and socket are long-lived.
	server := &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(services),
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return &HTTPServer{Server: server, limiter: limiter, logger: logger}, nil
}

// ListenAndServe serves until ctx is done, then shuts down within shutdownTimeout.
func (s *HTTPServer) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	defer s.limiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.Server.Addr)
		if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return <-errCh
}
