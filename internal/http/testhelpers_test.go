package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/sidesa/desa-admin/internal/adapters/sessionstore"
	"github.com/sidesa/desa-admin/internal/adapters/tokenstore"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/domain/navigation"
	authmocks "github.com/sidesa/desa-admin/internal/mocks/auth"
	notifymocks "github.com/sidesa/desa-admin/internal/mocks/notify"
	"github.com/sidesa/desa-admin/internal/service"
	"github.com/stretchr/testify/require"
)

var operator = domainauth.Identity{
	UserID:      "1",
	Username:    "admin",
	DisplayName: "Admin Desa",
	Email:       "admin@desa.id",
	Role:        domainauth.RoleAdmin,
}

// gateway is a router wired to real session, navigation and relay services over in-memory ports.
type gateway struct {
	guard    *service.SessionGuard
	tracker  *service.Tracker
	store    *tokenstore.MemoryStore
	sessions *sessionstore.MemoryStore
	relay   *service.NotificationRelay
	dialer   *notifymocks.FakeDialer
	auth     *authmocks.MockAuthenticator
	handler  http.Handler
}

type gatewayOptions struct {
	token   string
	resolve bool
	mutate  func(*RouterServices)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGateway(t *testing.T, opts gatewayOptions) *gateway {
	t.Helper()
	logger := discardLogger()
	bus := evbus.New()

	policy := navigation.DefaultPolicy()
	tracker := service.NewTracker(service.TrackerOptions{Policy: policy, Logger: logger})
	require.NoError(t, tracker.Attach(bus))

	store := tokenstore.NewMemoryStore(opts.token)
	guard, err := service.NewSessionGuard(service.SessionGuardOptions{
		Store:     store,
		Lookup:    authmocks.NewMockLookup(map[string]domainauth.Identity{"good-token": operator}),
		Navigator: tracker,
		Bus:       bus,
		Policy:    policy,
		Logger:    logger,
	})
	require.NoError(t, err)

	dialer := &notifymocks.FakeDialer{}
	relay, err := service.NewNotificationRelay(service.NotificationRelayOptions{Dialer: dialer, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = relay.Disconnect() })

	auth := &authmocks.MockAuthenticator{Tokens: map[string]string{"admin:rahasia": "good-token"}}

	sessions := sessionstore.NewMemoryStore(nil)

	svcs := RouterServices{
		Session:      guard,
		Tracker:      tracker,
		Auth:         auth,
		Feed:         relay,
		Tokens:       store,
		Sessions:     &BrowserSessions{Store: sessions, Logger: logger},
		ReadyTimeout: time.Second,
		Logger:       logger,
	}
	if opts.mutate != nil {
		opts.mutate(&svcs)
	}

	if opts.resolve {
		guard.Resolve(context.Background())
	}

	return &gateway{
		guard:    guard,
		tracker:  tracker,
		store:    store,
		sessions: sessions,
		relay:    relay,
		dialer:   dialer,
		auth:     auth,
		handler:  NewRouter(svcs),
	}
}

func (g *gateway) do(t *testing.T, method, target, accept string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func (g *gateway) postJSON(t *testing.T, target, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

const testCSRFToken = "csrf-test-token"

// browser keeps the gateway's cookies across requests and echoes the CSRF cookie in the header
// on unsafe requests.
type browser struct {
	g       *gateway
	cookies map[string]*http.Cookie
}

func (g *gateway) newBrowser() *browser {
	return &browser{g: g, cookies: map[string]*http.Cookie{
		DefaultCSRFCookieName: {Name: DefaultCSRFCookieName, Value: testCSRFToken},
	}}
}

// signedIn returns a browser holding a session for the operator's current login.
func (g *gateway) signedIn(t *testing.T) *browser {
	t.Helper()
	snap := g.guard.Snapshot()
	require.True(t, snap.Authenticated(), "operator must be authenticated")

	now := time.Now()
	sess := domainauth.Session{
		ID:        "sess-" + snap.Grant,
		UserID:    snap.Identity.UserID,
		Grant:     snap.Grant,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, g.sessions.Save(context.Background(), sess))

	b := g.newBrowser()
	b.cookies[DefaultSessionCookieName] = &http.Cookie{Name: DefaultSessionCookieName, Value: sess.ID}
	return b
}

func (b *browser) send(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	if csrf, ok := b.cookies[DefaultCSRFCookieName]; ok && requiresCSRFValidation(req.Method) &&
		req.Header.Get(DefaultCSRFHeaderName) == "" {
		req.Header.Set(DefaultCSRFHeaderName, csrf.Value)
	}
	rec := httptest.NewRecorder()
	b.g.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) do(t *testing.T, method, target, accept string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return b.send(t, req)
}

func (b *browser) postJSON(t *testing.T, target, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return b.send(t, req)
}

// login signs the browser in through POST /login.
func (b *browser) login(t *testing.T) {
	t.Helper()
	rec := b.postJSON(t, "/login", `{"username":"admin","password":"rahasia"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, b.cookies, DefaultSessionCookieName)
}

// header returns the browser's cookies as request headers for clients outside httptest.
func (b *browser) header() http.Header {
	req := &http.Request{Header: http.Header{}}
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return http.Header{"Cookie": {req.Header.Get("Cookie")}}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const (
	acceptHTML = "text/html,application/xhtml+xml"
	acceptJSON = "application/json"
)
