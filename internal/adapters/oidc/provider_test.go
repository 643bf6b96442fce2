package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sidesa/desa-admin/internal/adapters/authroles"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIssuer serves discovery, userinfo and token endpoints for a fake provider.
func newIssuer(t *testing.T, userInfo map[string]any) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			Issuer:                srv.URL,
			AuthorizationEndpoint: srv.URL + "/auth",
			TokenEndpoint:         srv.URL + "/token",
			UserinfoEndpoint:      srv.URL + "/userinfo",
			JwksURI:               srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userInfo)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("password") != "rahasia" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"good-token","token_type":"Bearer","expires_in":3600}`))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewProvider_RequiresIssuer(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{})
	require.EqualError(t, err, "issuer URL is required")
}

func TestNewProvider_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewProvider(context.Background(), ProviderConfig{IssuerURL: srv.URL})
	require.Error(t, err)
}

func TestNewProvider_AcceptsDiscoveryURL(t *testing.T) {
	srv := newIssuer(t, nil)
	p, err := NewProvider(context.Background(), ProviderConfig{
		IssuerURL: srv.URL + "/.well-known/openid-configuration",
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, "groups", p.groupsClaim)
}

func TestProvider_Lookup(t *testing.T) {
	srv := newIssuer(t, map[string]any{
		"sub":                "u-17",
		"preferred_username": "kades",
		"name":               "Kepala Desa",
		"email":              "kades@desa.id",
		"roles":              []string{"staff", "Admin"},
	})
	p, err := NewProvider(context.Background(), ProviderConfig{
		IssuerURL:   srv.URL,
		GroupsClaim: "roles",
		Roles:       authroles.StaticRoleMapper{AdminNames: []string{"admin"}, UserNames: []string{"staff"}},
	})
	require.NoError(t, err)

	id, err := p.Lookup(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, domainauth.Identity{
		UserID:      "u-17",
		Username:    "kades",
		DisplayName: "Kepala Desa",
		Email:       "kades@desa.id",
		Role:        domainauth.RoleAdmin,
	}, id)
}

func TestProvider_LookupRejected(t *testing.T) {
	srv := newIssuer(t, map[string]any{"sub": "u-1"})
	p, err := NewProvider(context.Background(), ProviderConfig{IssuerURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Lookup(context.Background(), "expired-token")
	require.Error(t, err)
}

func TestProvider_LookupWithoutRoleMapper(t *testing.T) {
	srv := newIssuer(t, map[string]any{"sub": "u-2", "email": "op@desa.id", "groups": "user"})
	p, err := NewProvider(context.Background(), ProviderConfig{IssuerURL: srv.URL})
	require.NoError(t, err)

	id, err := p.Lookup(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "op@desa.id", id.Username)
	assert.Equal(t, domainauth.RoleUser, id.Role)
}

func TestProvider_Login(t *testing.T) {
	srv := newIssuer(t, nil)
	p, err := NewProvider(context.Background(), ProviderConfig{
		IssuerURL:    srv.URL,
		ClientID:     "desa-admin",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	token, err := p.Login(context.Background(), ports.Credentials{Username: "kades", Password: "rahasia"})
	require.NoError(t, err)
	assert.Equal(t, "good-token", token)

	_, err = p.Login(context.Background(), ports.Credentials{Username: "kades", Password: "salah"})
	require.Error(t, err)
}

func TestProvider_LoginWithoutClient(t *testing.T) {
	srv := newIssuer(t, nil)
	p, err := NewProvider(context.Background(), ProviderConfig{IssuerURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Login(context.Background(), ports.Credentials{Username: "a", Password: "b"})
	require.ErrorIs(t, err, ErrLoginUnsupported)
}

func TestStringSlice(t *testing.T) {
	assert.Nil(t, stringSlice(nil))
	assert.Nil(t, stringSlice(""))
	assert.Equal(t, []string{"admin"}, stringSlice("admin"))
	assert.Equal(t, []string{"a", "b"}, stringSlice([]any{"a", 3, "", "b"}))
}
