package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func csrfTestHandler(cfg CSRFConfig) http.Handler {
	return CSRFProtection(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(GetCSRFToken(r)))
	}))
}

func TestCSRFProtection_GetIssuesCookie(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp := w.Result()
	defer resp.Body.Close()

	var csrfCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCSRFCookieName {
			csrfCookie = c
			break
		}
	}
	if csrfCookie == nil {
		t.Fatal("CSRF cookie not set")
	}
	if csrfCookie.Value == "" {
		t.Error("CSRF token is empty")
	}
	if csrfCookie.HttpOnly {
		t.Error("CSRF cookie must be readable by the client")
	}
	if csrfCookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("expected SameSite=Strict, got %v", csrfCookie.SameSite)
	}
	if got := w.Body.String(); got != csrfCookie.Value {
		t.Errorf("context token %q does not match cookie %q", got, csrfCookie.Value)
	}
}

func TestCSRFProtection_ExistingCookieKept(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("expected no new cookie when one is present")
	}
	if w.Body.String() != "existing" {
		t.Errorf("expected context token 'existing', got %q", w.Body.String())
	}
}

func TestCSRFProtection_PostWithoutTokenFails(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "csrf_failed") {
		t.Errorf("expected csrf_failed error, got %s", w.Body.String())
	}
}

func TestCSRFProtection_Methods(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodHead, http.StatusOK},
		{http.MethodOptions, http.StatusOK},
		{http.MethodPost, http.StatusForbidden},
		{http.MethodPut, http.StatusForbidden},
		{http.MethodPatch, http.StatusForbidden},
		{http.MethodDelete, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/users/7", nil)
			req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "token"})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestCSRFProtection_PostWithValidHeaderToken(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "test-token-123"})
	req.Header.Set(DefaultCSRFHeaderName, "test-token-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCSRFProtection_PostWithInvalidHeaderToken(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "test-token-123"})
	req.Header.Set(DefaultCSRFHeaderName, "wrong-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}
}

func TestCSRFProtection_PostWithValidFormToken(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	form := url.Values{"username": {"admin"}, DefaultCSRFCookieName: {"test-token-123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "test-token-123"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCSRFProtection_JSONBodyTokenIgnored(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"csrf_token":"test-token-123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "test-token-123"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}
}

func TestCSRFProtection_Origin(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{AllowedOrigins: []string{"https://admin.desa.id"}})

	tests := []struct {
		name   string
		origin string
		want   int
	}{
		{name: "no origin", want: http.StatusOK},
		{name: "same origin", origin: "http://gateway.local", want: http.StatusOK},
		{name: "allowed origin", origin: "https://admin.desa.id", want: http.StatusOK},
		{name: "foreign origin", origin: "https://evil.example", want: http.StatusForbidden},
		{name: "malformed origin", origin: "://", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://gateway.local/logout", nil)
			req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "tok"})
			req.Header.Set(DefaultCSRFHeaderName, "tok")
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestCSRFProtection_SecureCookieBehindTLSProxy(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{CookieDomain: "desa.id"})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("X-Forwarded-Proto", "http, https")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if !cookies[0].Secure {
		t.Error("expected Secure cookie behind an https proxy")
	}
	if cookies[0].Domain != "desa.id" {
		t.Errorf("expected cookie domain desa.id, got %q", cookies[0].Domain)
	}
}
