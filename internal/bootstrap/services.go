package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	evbus "github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sidesa/desa-admin/config"
	"github.com/sidesa/desa-admin/internal/data"
	"github.com/sidesa/desa-admin/internal/domain/navigation"
	"github.com/sidesa/desa-admin/internal/observability/metrics"
	"github.com/sidesa/desa-admin/internal/ports"
	"github.com/sidesa/desa-admin/internal/service"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Bus      evbus.Bus
	Tracker  *service.Tracker
	Session  *service.SessionGuard
	Identity IdentityAdapters
	Tokens   ports.TokenStore
	Sessions ports.SessionStore
	// Relay and Gate are nil unless the relay service is enabled.
	Relay *service.NotificationRelay
	Gate  *service.RelayGate
	// Journal is nil unless JOURNAL_ENABLED is set.
	Journal       *data.NotificationJournalRepo
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Metrics *metrics.Collector
	// Handler serves the registry; nil when metrics are disabled.
	Handler http.Handler
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability registers the collector on a private registry.
func buildObservability(cfg config.ObservabilityConfig) ObservabilityContainer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	obs := ObservabilityContainer{Metrics: metrics.NewCollector(reg)}
	if cfg.MetricsEnabled {
		obs.Handler = metrics.Handler(reg)
	}
	return obs
}

func navigationPolicy(cfg config.SessionConfig) navigation.Policy {
	return navigation.Policy{
		LoginRoute:   cfg.LoginRoute,
		LandingRoute: cfg.LandingRoute,
		PublicRoutes: cfg.PublicRoutes,
	}.Normalize()
}

// NewServices wires the session, navigation and notification services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(cfg.Observability)
	policy := navigationPolicy(cfg.Session)
	bus := evbus.New()

	tokens, err := BuildTokenStore(cfg.TokenStore, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("token store: %w", err)
	}
	sessions, err := BuildSessionStore(cfg.Session, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session store: %w", err)
	}
	ident, err := BuildIdentity(ctx, cfg.Identity, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	tracker := service.NewTracker(service.TrackerOptions{Policy: policy, Logger: logger})
	if err := tracker.Attach(bus); err != nil {
		return ServiceContainer{}, fmt.Errorf("attach navigation tracker: %w", err)
	}

	guard, err := service.NewSessionGuard(service.SessionGuardOptions{
		Store:         tokens,
		Lookup:        ident.Lookup,
		Navigator:     tracker,
		Bus:           bus,
		Policy:        policy,
		LookupTimeout: cfg.Session.LookupTimeout,
		Metrics:       obs.Metrics,
		Logger:        logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session guard: %w", err)
	}

	container := ServiceContainer{
		Bus:           bus,
		Tracker:       tracker,
		Session:       guard,
		Identity:      ident,
		Tokens:        tokens,
		Sessions:      sessions,
		Observability: obs,
	}

	if cfg.Journal.Enabled {
		if deps.DB == nil {
			return ServiceContainer{}, errors.New("JOURNAL_ENABLED requires a database connection")
		}
		container.Journal = data.NewNotificationJournalRepo(deps.DB)
	}

	if cfg.IsRelayEnabled() {
		if err := wireRelay(&container, cfg, deps.RedisClient, logger); err != nil {
			return ServiceContainer{}, err
		}
	}

	return container, nil
}

func wireRelay(c *ServiceContainer, cfg *config.AppConfig, redisClient redis.UniversalClient, logger *slog.Logger) error {
	dialer, err := BuildDialer(cfg.Notify, redisClient, c.Tokens, logger)
	if err != nil {
		return fmt.Errorf("notification dialer: %w", err)
	}
	extractor, err := service.NewMessageExtractor(cfg.Notify.MessageExpr)
	if err != nil {
		return fmt.Errorf("notification message expression: %w", err)
	}

	opts := service.NotificationRelayOptions{
		Dialer:         dialer,
		Extractor:      extractor,
		JournalTimeout: cfg.Journal.AppendTimeout,
		JournalBuffer:  cfg.Journal.Buffer,
		QueueCapacity:  cfg.Notify.QueueCapacity,
		Metrics:        c.Observability.Metrics,
		Logger:         logger,
	}
	if c.Journal != nil {
		opts.Journal = c.Journal
	}
	relay, err := service.NewNotificationRelay(opts)
	if err != nil {
		return fmt.Errorf("notification relay: %w", err)
	}

	gate, err := service.NewRelayGate(service.RelayGateOptions{
		Relay:         relay,
		Session:       c.Session,
		RequireAuth:   cfg.Notify.RequireAuth,
		RetryInterval: cfg.Notify.ReconnectInterval,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("relay gate: %w", err)
	}
	if err := gate.Attach(c.Bus); err != nil {
		return fmt.Errorf("attach relay gate: %w", err)
	}

	c.Relay = relay
	c.Gate = gate
	return nil
}
