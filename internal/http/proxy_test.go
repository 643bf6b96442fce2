package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstreamGateway(t *testing.T, upstream *httptest.Server, token string) *gateway {
	t.Helper()
	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	return newGateway(t, gatewayOptions{token: token, resolve: true, mutate: func(s *RouterServices) {
		s.Upstream = u
	}})
}

func TestAPIProxy_InjectsBearerToken(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Cookie"))
		assert.Empty(t, r.Header.Get(DefaultCSRFHeaderName))
		assert.Equal(t, "/api/letters", r.URL.Path)
		assert.Equal(t, "status=draft", r.URL.RawQuery)
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
	}))
	defer upstream.Close()

	g := upstreamGateway(t, upstream, "good-token")
	req := httptest.NewRequest(http.MethodPost, "/api/letters?status=draft", strings.NewReader(`{"nomor":"12/DS/2025"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := g.signedIn(t).send(t, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"echo":{"nomor":"12/DS/2025"}}`, rec.Body.String())
}

func TestAPIProxy_RequiresSession(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer upstream.Close()

	g := upstreamGateway(t, upstream, "")
	rec := g.do(t, http.MethodGet, "/api/users", acceptHTML, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, "api paths never redirect")
	assert.False(t, called)
}

func TestAPIProxy_AnonymousRequestsRejected(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer upstream.Close()
	g := upstreamGateway(t, upstream, "good-token")

	t.Run("cross-origin delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/users/7", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := serve(g, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("same-origin delete with forged csrf pair", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/users/7", nil)
		rec := g.newBrowser().send(t, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("read", func(t *testing.T) {
		rec := g.do(t, http.MethodGet, "/api/users", acceptJSON, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	assert.Zero(t, calls.Load(), "upstream must not be reached")
	assert.Equal(t, "good-token", g.store.Peek())
}

func TestAPIProxy_SignedInCrossOriginWriteRejected(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer upstream.Close()
	g := upstreamGateway(t, upstream, "good-token")

	req := httptest.NewRequest(http.MethodDelete, "/api/users/7", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := g.signedIn(t).send(t, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, calls.Load())
}

func TestAPIProxy_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	g := upstreamGateway(t, upstream, "good-token")
	upstream.Close()

	rec := g.signedIn(t).do(t, http.MethodGet, "/api/finances", acceptJSON, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_unavailable", decodeBody(t, rec)["error"])
}

func TestAPIProxy_NotMountedWithoutUpstream(t *testing.T) {
	g := newGateway(t, gatewayOptions{token: "good-token", resolve: true})
	rec := g.do(t, http.MethodGet, "/api/users", acceptJSON, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
