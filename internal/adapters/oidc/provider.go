// Package oidc resolves operator tokens through an OIDC provider's UserInfo endpoint.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
	"golang.org/x/oauth2"
)

var (
	_ ports.IdentityLookup = (*Provider)(nil)
	_ ports.Authenticator  = (*Provider)(nil)
)

// ErrLoginUnsupported is returned by Login when no client credentials are configured.
var ErrLoginUnsupported = errors.New("oidc login requires a client ID")

// Provider implements ports.IdentityLookup (UserInfo) and ports.Authenticator (password grant).
type Provider struct {
	provider    *gooidc.Provider
	config      *oauth2.Config
	groupsClaim string
	roles       ports.RoleMapper
	httpClient  *http.Client
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	// IssuerURL is the issuer or its discovery document URL.
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scope        string
	GroupsClaim  string
	Roles        ports.RoleMapper
	HTTPClient   *http.Client // Optional, defaults to a 30s client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider runs discovery against the issuer and returns a Provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if config.GroupsClaim == "" {
		config.GroupsClaim = "groups"
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(config.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		provider: op,
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       strings.Fields(config.Scope),
			Endpoint:     op.Endpoint(),
		},
		groupsClaim: config.GroupsClaim,
		roles:       config.Roles,
		httpClient:  httpClient,
	}, nil
}

// Lookup fetches the UserInfo for the access token and maps it to an identity.
func (p *Provider) Lookup(ctx context.Context, token string) (domainauth.Identity, error) {
	ctx = gooidc.ClientContext(ctx, p.httpClient)
	ui, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("fetch user info: %w", err)
	}

	var claims map[string]any
	if err := ui.Claims(&claims); err != nil {
		return domainauth.Identity{}, fmt.Errorf("decode user info: %w", err)
	}
	return p.mapClaims(ui, claims)
}

// Login exchanges operator credentials for an access token using the resource owner password grant.
func (p *Provider) Login(ctx context.Context, creds ports.Credentials) (string, error) {
	if p.config.ClientID == "" {
		return "", ErrLoginUnsupported
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.config.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
	if err != nil {
		return "", fmt.Errorf("password grant: %w", err)
	}
	return tok.AccessToken, nil
}

func (p *Provider) mapClaims(ui *gooidc.UserInfo, claims map[string]any) (domainauth.Identity, error) {
	if ui.Subject == "" {
		return domainauth.Identity{}, errors.New("user info has no subject")
	}
	groups := stringSlice(claims[p.groupsClaim])

	role := domainauth.RoleGuest
	if p.roles != nil {
		role = p.roles.Map(groups)
	} else if len(groups) > 0 {
		role = domainauth.ParseRole(groups[0])
	}

	return domainauth.Identity{
		UserID:      ui.Subject,
		Username:    firstNonEmpty(stringClaim(claims, "preferred_username"), ui.Email, ui.Subject),
		DisplayName: stringClaim(claims, "name"),
		Email:       ui.Email,
		Role:        role,
	}, nil
}

// stringSlice accepts either a JSON array of strings or a single string.
func stringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
