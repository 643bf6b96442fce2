package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
)

const (
	// DefaultSessionCookieName is the cookie that carries the browser session ID.
	DefaultSessionCookieName = "session_id"
	defaultSessionTTL        = 12 * time.Hour
	sessionIDLength          = 32
)

var errSessionsNotConfigured = errors.New("browser sessions are not configured")

// BrowserSessions ties browsers to the operator login. POST /login issues a session cookie and
// protected routes admit only requests whose session was issued for the current login.
type BrowserSessions struct {
	Store        ports.SessionStore
	TTL          time.Duration
	CookieName   string
	CookieDomain string
	Now          func() time.Time
	Logger       *slog.Logger
}

func (b *BrowserSessions) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *BrowserSessions) ttl() time.Duration {
	if b.TTL > 0 {
		return b.TTL
	}
	return defaultSessionTTL
}

func (b *BrowserSessions) cookieName() string {
	if b.CookieName != "" {
		return b.CookieName
	}
	return DefaultSessionCookieName
}

func (b *BrowserSessions) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *BrowserSessions) cookieValue(r *http.Request) string {
	c, err := r.Cookie(b.cookieName())
	if err != nil {
		return ""
	}
	return c.Value
}

// Issue saves a session bound to the authenticated snapshot and sets its cookie. A session the
// browser already carried is replaced.
func (b *BrowserSessions) Issue(w http.ResponseWriter, r *http.Request, snap domainauth.Snapshot) error {
	if b == nil || b.Store == nil {
		return errSessionsNotConfigured
	}
	if !snap.Authenticated() {
		return errors.New("operator session is not authenticated")
	}
	id, err := randomToken(sessionIDLength)
	if err != nil {
		return err
	}
	now := b.now()
	sess := domainauth.Session{
		ID:        id,
		UserID:    snap.Identity.UserID,
		Grant:     snap.Grant,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl()),
	}
	ctx := r.Context()
	if err := b.Store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save browser session: %w", err)
	}
	if old := b.cookieValue(r); old != "" {
		b.delete(ctx, old)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName(),
		Value:    sess.ID,
		Path:     "/",
		Domain:   b.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(b.ttl().Seconds()),
	})
	return nil
}

// Current returns the request's browser session when it was issued for the login in snap.
func (b *BrowserSessions) Current(r *http.Request, snap domainauth.Snapshot) (domainauth.Session, bool) {
	if b == nil || b.Store == nil {
		return domainauth.Session{}, false
	}
	id := b.cookieValue(r)
	if id == "" {
		return domainauth.Session{}, false
	}
	sess, err := b.Store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ports.ErrSessionNotFound) {
			b.logger().WarnContext(r.Context(), "read browser session failed", "error", err)
		}
		return domainauth.Session{}, false
	}
	if !sess.Admits(snap, b.now()) {
		return domainauth.Session{}, false
	}
	return sess, true
}

// Revoke deletes the request's browser session and expires its cookie.
func (b *BrowserSessions) Revoke(w http.ResponseWriter, r *http.Request) {
	if b == nil {
		return
	}
	id := b.cookieValue(r)
	if id == "" {
		return
	}
	if b.Store != nil {
		b.delete(context.WithoutCancel(r.Context()), id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   b.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (b *BrowserSessions) delete(ctx context.Context, id string) {
	if err := b.Store.Delete(ctx, id); err != nil {
		b.logger().WarnContext(ctx, "delete browser session failed", "error", err)
	}
}
