package bootstrap

import (
	"context"
	"log/slog"

	"github.com/sidesa/desa-admin/config"
	"golang.org/x/sync/errgroup"
)

// RunConfig groups what Run needs.
type RunConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// Run resolves the stored session and runs the enabled services until ctx is canceled or one of
// them fails.
func Run(ctx context.Context, cfg RunConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	svc := cfg.Services

	var server *HTTPServer
	if appCfg.IsHTTPServerEnabled() {
		s, err := NewHTTPServer(&HTTPServerConfig{Config: appCfg, Services: svc, Logger: logger})
		if err != nil {
			return err
		}
		server = s
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap := svc.Session.Resolve(gctx)
		logger.InfoContext(gctx, "initial session resolved", "status", snap.Status.String())
		return nil
	})

	if svc.Gate != nil {
		g.Go(func() error {
			return svc.Gate.Run(gctx)
		})
	}

	if server != nil {
		g.Go(func() error {
			return server.ListenAndServe(gctx, appCfg.HTTP.ShutdownTimeout)
		})
	}

	return g.Wait()
}
