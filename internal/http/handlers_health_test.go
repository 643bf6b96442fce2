package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	g := newGateway(t, gatewayOptions{token: "good-token"})

	rec := g.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","session":"unknown","relay_connected":false}`, rec.Body.String())

	g.guard.Resolve(t.Context())
	require.NoError(t, g.relay.Connect(t.Context()))

	rec = g.do(t, http.MethodGet, "/healthz", "", nil)
	assert.JSONEq(t, `{"status":"ok","session":"authenticated","relay_connected":true}`, rec.Body.String())
}

func TestHealth_Head(t *testing.T) {
	g := newGateway(t, gatewayOptions{})

	rec := g.do(t, http.MethodHead, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestMetricsRoute(t *testing.T) {
	g := newGateway(t, gatewayOptions{mutate: func(s *RouterServices) {
		s.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
	}})

	rec := g.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}
