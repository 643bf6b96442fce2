package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sidesa/desa-admin/internal/adapters/authroles"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func newClient(t *testing.T, srv *httptest.Server, roles ports.RoleMapper) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: srv.URL, Roles: roles})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)

	c, err := New(Options{BaseURL: "http://localhost:3000"})
	require.NoError(t, err)
	assert.Equal(t, "/api/users/{id}", c.lookupPath)
	assert.Equal(t, "/api/login", c.loginPath)
	assert.NotNil(t, c.http.Jar)
}

func TestUserIDFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{name: "numeric id", claims: jwt.MapClaims{"id": 7}, want: "7"},
		{name: "user_id string", claims: jwt.MapClaims{"user_id": "u-9"}, want: "u-9"},
		{name: "sub fallback", claims: jwt.MapClaims{"sub": "42"}, want: "42"},
		{name: "id wins over sub", claims: jwt.MapClaims{"id": "1", "sub": "2"}, want: "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserIDFromToken(signToken(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := UserIDFromToken("not-a-jwt")
	require.ErrorIs(t, err, ErrMalformedToken)

	_, err = UserIDFromToken(signToken(t, jwt.MapClaims{"role": "admin"}))
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestClient_Lookup(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"id": 3})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/users/3", r.URL.Path)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"user_id":3,"username":"sekdes","name":"Sekretaris Desa","email":"sekdes@desa.id","role":"Admin"}}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)
	id, err := c.Lookup(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domainauth.Identity{
		UserID:      "3",
		Username:    "sekdes",
		DisplayName: "Sekretaris Desa",
		Email:       "sekdes@desa.id",
		Role:        domainauth.RoleAdmin,
	}, id)
}

func TestClient_LookupUsesRoleMapper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"5","username":"kaur","role":"perangkat"}}`))
	}))
	defer srv.Close()

	roles := &authroles.StaticRoleMapper{AdminNames: []string{"admin"}, UserNames: []string{"perangkat"}}
	c := newClient(t, srv, roles)
	id, err := c.Lookup(context.Background(), signToken(t, jwt.MapClaims{"id": 5}))
	require.NoError(t, err)
	assert.Equal(t, "5", id.UserID)
	assert.Equal(t, domainauth.RoleUser, id.Role)
}

func TestClient_LookupRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)
	_, err := c.Lookup(context.Background(), signToken(t, jwt.MapClaims{"id": 1}))
	require.ErrorIs(t, err, ErrLookupRejected)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusUnauthorized, rejected.StatusCode)
	assert.Equal(t, "token expired", rejected.Message)
}

func TestClient_LookupMalformedResponse(t *testing.T) {
	bodies := []string{`not json`, `{}`, `{"data":{"id":1}}`}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c := newClient(t, srv, nil)
			_, err := c.Lookup(context.Background(), signToken(t, jwt.MapClaims{"id": 1}))
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestClient_LookupMalformedTokenSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer srv.Close()

	c := newClient(t, srv, nil)
	_, err := c.Lookup(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrMalformedToken)
	assert.Zero(t, calls)
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var creds ports.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Username != "admin" || creds.Password != "rahasia" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Username atau password salah"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"issued-token"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)

	token, err := c.Login(context.Background(), ports.Credentials{Username: "admin", Password: "rahasia"})
	require.NoError(t, err)
	assert.Equal(t, "issued-token", token)

	_, err = c.Login(context.Background(), ports.Credentials{Username: "admin", Password: "salah"})
	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, http.StatusUnauthorized, loginErr.StatusCode)
	assert.Equal(t, "Username atau password salah", loginErr.Error())
}

func TestClient_LoginWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, nil).Login(context.Background(), ports.Credentials{Username: "a", Password: "b"})
	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, "login failed: Bad Gateway", loginErr.Message)
}

func TestClient_LoginMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, nil).Login(context.Background(), ports.Credentials{Username: "a", Password: "b"})
	require.ErrorIs(t, err, ErrMalformedResponse)
}
