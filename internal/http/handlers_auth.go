package httpx

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
	"github.com/sidesa/desa-admin/internal/service"
)

const genericLoginFailure = "invalid username or password"

// AuthHandlers serves the login, logout and status endpoints.
type AuthHandlers struct {
	Session  SessionService
	Auth     ports.Authenticator
	Tracker  RouteTracker
	Sessions *BrowserSessions
	Logger   *slog.Logger
}

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// sessionResponse is the JSON view of the session state. Identity is only shown to a browser
// holding a session for the current login.
type sessionResponse struct {
	Status     domainauth.Status    `json:"status"`
	SignedIn   bool                 `json:"signed_in"`
	Identity   *domainauth.Identity `json:"identity,omitempty"`
	Route      string               `json:"route,omitempty"`
	RedirectTo string               `json:"redirect_to,omitempty"`
	CSRFToken  string               `json:"csrf_token,omitempty"`
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// view builds the session response as seen by the requesting browser.
func (h *AuthHandlers) view(r *http.Request, snap domainauth.Snapshot) sessionResponse {
	_, signedIn := h.Sessions.Current(r, snap)
	resp := sessionResponse{
		Status:    snap.Status,
		SignedIn:  signedIn,
		CSRFToken: GetCSRFToken(r),
	}
	if signedIn {
		resp.Identity = snap.Identity
	}
	return resp
}

// LoginPage reports the session status for the login route and hands out the CSRF token
// POST /login expects.
// GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	snap := h.Session.Snapshot()
	resp := h.view(r, snap)
	if resp.SignedIn || !snap.Authenticated() {
		resp.Route = h.Tracker.Visit(h.Tracker.Policy().LoginRoute)
	} else {
		resp.Route = h.Tracker.Current()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Login exchanges credentials for a token and hands it to the session guard.
// Failures answer 401 with an inline message; the caller keeps its form input.
// POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogin(w, r)
	if !ok {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("username and password are required"),
		})
		return
	}

	ctx := r.Context()
	token, err := h.Auth.Login(ctx, ports.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		h.logger().WarnContext(ctx, "login rejected", "username", req.Username, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "login_failed",
			Err:     errors.New(publicMessage(err)),
		})
		return
	}

	if err := h.Session.Login(ctx, token); err != nil {
		if errors.Is(err, service.ErrLoginFailed) || errors.Is(err, service.ErrEmptyToken) {
			WriteError(w, ErrorParams{
				Code:    http.StatusUnauthorized,
				ErrCode: "login_failed",
				Err:     errors.New(genericLoginFailure),
			})
			return
		}
		h.writeStoreFailure(w, r, err)
		return
	}
	if err := h.Sessions.Issue(w, r, h.Session.Snapshot()); err != nil {
		h.writeStoreFailure(w, r, err)
		return
	}

	policy := h.Tracker.Policy()
	target := policy.LandingRoute
	if req.RedirectURI != "" {
		target = safeRedirectPath(req.RedirectURI)
	}
	h.Tracker.Visit(target)

	if IsBrowserRequest(r) && !wantsJSON(r) {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	snap := h.Session.Snapshot()
	WriteJSON(w, http.StatusOK, sessionResponse{
		Status:     snap.Status,
		SignedIn:   snap.Authenticated(),
		Identity:   snap.Identity,
		Route:      h.Tracker.Current(),
		RedirectTo: target,
		CSRFToken:  GetCSRFToken(r),
	})
}

func (h *AuthHandlers) writeStoreFailure(w http.ResponseWriter, r *http.Request, err error) {
	h.logger().ErrorContext(r.Context(), "login could not be stored", "error", err)
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: "session_store_failed",
		Err:     errors.New("could not save session"),
	})
}

// Logout ends the operator session. Only a browser signed in to the current login may do so;
// while the operator is logged out it just drops the browser's cookie.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	loginRoute := h.Tracker.Policy().LoginRoute
	snap := h.Session.Snapshot()
	_, signedIn := h.Sessions.Current(r, snap)
	if !signedIn && snap.Authenticated() {
		denySession(w, r, loginRoute)
		return
	}

	h.Sessions.Revoke(w, r)
	if signedIn {
		h.Session.Logout(r.Context())
	}

	if IsBrowserRequest(r) && !wantsJSON(r) {
		http.Redirect(w, r, loginRoute, http.StatusSeeOther)
		return
	}
	snap = h.Session.Snapshot()
	WriteJSON(w, http.StatusOK, sessionResponse{
		Status:     snap.Status,
		Route:      h.Tracker.Current(),
		RedirectTo: loginRoute,
		CSRFToken:  GetCSRFToken(r),
	})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	resp := h.view(r, h.Session.Snapshot())
	resp.Route = h.Tracker.Current()
	WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandlers) decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return req, DecodeJSON(w, r, &req)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return req, false
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	req.RedirectURI = r.PostForm.Get("redirect_uri")
	if req.RedirectURI == "" {
		req.RedirectURI = r.URL.Query().Get("redirect_uri")
	}
	return req, true
}

// publicMessage returns the operator-facing text of a login failure.
func publicMessage(err error) string {
	var pm interface{ PublicMessage() string }
	if errors.As(err, &pm) {
		if msg := strings.TrimSpace(pm.PublicMessage()); msg != "" {
			return msg
		}
	}
	return genericLoginFailure
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" || strings.Contains(candidate, `\`) {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
