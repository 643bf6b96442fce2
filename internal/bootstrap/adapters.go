package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sidesa/desa-admin/config"
	"github.com/sidesa/desa-admin/internal/adapters/authroles"
	"github.com/sidesa/desa-admin/internal/adapters/devauth"
	"github.com/sidesa/desa-admin/internal/adapters/identity"
	"github.com/sidesa/desa-admin/internal/adapters/oidc"
	redisadapter "github.com/sidesa/desa-admin/internal/adapters/redis"
	"github.com/sidesa/desa-admin/internal/adapters/sessionstore"
	"github.com/sidesa/desa-admin/internal/adapters/tokenstore"
	"github.com/sidesa/desa-admin/internal/adapters/wschannel"
	"github.com/sidesa/desa-admin/internal/ports"
)

// IdentityAdapters pairs the lookup and login collaborators of one identity backend.
type IdentityAdapters struct {
	Lookup ports.IdentityLookup
	Auth   ports.Authenticator
}

// BuildTokenStore creates the token store selected by TOKEN_STORE.
//
//nolint:ireturn // the store implementation is chosen by configuration.
func BuildTokenStore(cfg config.TokenStoreConfig, redisClient redis.UniversalClient) (ports.TokenStore, error) {
	switch cfg.Mode {
	case config.TokenStoreRedis:
		if redisClient == nil {
			return nil, errors.New("TOKEN_STORE=redis requires a redis connection")
		}
		return redisadapter.NewTokenStore(redisClient, redisadapter.TokenStoreOptions{
			Prefix: cfg.RedisPrefix,
			Key:    cfg.Key,
			TTL:    cfg.RedisTTL,
		}), nil
	case config.TokenStoreMemory:
		return tokenstore.NewMemoryStore(""), nil
	default:
		ring, err := tokenstore.OpenKeyring(tokenstore.KeyringConfig{
			ServiceName:  cfg.KeyringService,
			Backends:     cfg.KeyringBackends,
			FileDir:      cfg.KeyringFileDir,
			FilePassword: cfg.KeyringPassword,
		})
		if err != nil {
			return nil, err
		}
		return tokenstore.NewKeyringStore(ring, cfg.Key), nil
	}
}

// BuildSessionStore creates the browser session store selected by SESSION_STORE.
//
//nolint:ireturn // the store implementation is chosen by configuration.
func BuildSessionStore(cfg config.SessionConfig, redisClient redis.UniversalClient) (ports.SessionStore, error) {
	if cfg.Store == config.SessionStoreRedis {
		if redisClient == nil {
			return nil, errors.New("SESSION_STORE=redis requires a redis connection")
		}
		return redisadapter.NewSessionStore(redisClient, cfg.RedisPrefix), nil
	}
	return sessionstore.NewMemoryStore(nil), nil
}

// BuildIdentity creates the identity backend selected by IDENTITY_MODE.
func BuildIdentity(ctx context.Context, cfg config.IdentityConfig, logger *slog.Logger) (IdentityAdapters, error) {
	roles := authroles.StaticRoleMapper{AdminNames: cfg.AdminRoles, UserNames: cfg.UserRoles}

	switch cfg.Mode {
	case config.IdentityModeOIDC:
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			Scope:        cfg.OIDC.Scope,
			GroupsClaim:  cfg.OIDC.GroupsClaim,
			Roles:        roles,
		})
		if err != nil {
			return IdentityAdapters{}, fmt.Errorf("oidc identity: %w", err)
		}
		return IdentityAdapters{Lookup: prov, Auth: prov}, nil

	case config.IdentityModeDev:
		dev := cfg.DevAuth
		prov, err := devauth.NewProvider(devauth.Config{
			Token:    dev.Token,
			UserID:   dev.UserID,
			Username: dev.Username,
			Password: dev.Password,
			Name:     dev.Name,
			Email:    dev.Email,
			Role:     dev.Role,
		})
		if err != nil {
			return IdentityAdapters{}, fmt.Errorf("dev identity: %w", err)
		}
		if logger != nil {
			logger.WarnContext(ctx, "dev identity enabled; do not use in production", "username", dev.Username)
		}
		return IdentityAdapters{Lookup: prov, Auth: prov}, nil

	default:
		client, err := identity.New(identity.Options{
			BaseURL:    cfg.BaseURL,
			LookupPath: cfg.LookupPath,
			LoginPath:  cfg.LoginPath,
			Roles:      roles,
		})
		if err != nil {
			return IdentityAdapters{}, fmt.Errorf("rest identity: %w", err)
		}
		return IdentityAdapters{Lookup: client, Auth: client}, nil
	}
}

// BuildDialer creates the push channel dialer selected by NOTIFY_TRANSPORT.
//
//nolint:ireturn // the transport is chosen by configuration.
func BuildDialer(
	cfg config.NotifyConfig,
	redisClient redis.UniversalClient,
	tokens ports.TokenStore,
	logger *slog.Logger,
) (ports.ChannelDialer, error) {
	if cfg.Transport == config.NotifyTransportRedis {
		if redisClient == nil {
			return nil, errors.New("NOTIFY_TRANSPORT=redis requires a redis connection")
		}
		return redisadapter.NewPubSubDialer(redisClient, redisadapter.PubSubDialerOptions{
			Channel: cfg.RedisChannel,
			Backoff: cfg.ReconnectInterval,
			Logger:  logger,
		})
	}

	return wschannel.NewDialer(wschannel.Options{
		URL:               cfg.URL,
		Token:             storedToken(tokens),
		HandshakeTimeout:  cfg.HandshakeTimeout,
		ReconnectInterval: cfg.ReconnectInterval,
		Logger:            logger,
	})
}

// storedToken reads the handshake token from the token store; no token means no header.
func storedToken(tokens ports.TokenStore) wschannel.TokenFunc {
	if tokens == nil {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		tok, err := tokens.Get(ctx)
		if errors.Is(err, ports.ErrNoToken) {
			return "", nil
		}
		return tok, err
	}
}
