package httpx

import (
	"net/http"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
)

// DashboardHandlers serves the public landing route and the protected dashboard.
type DashboardHandlers struct {
	Session  SessionService
	Tracker  RouteTracker
	Feed     NotificationFeed
	Sessions *BrowserSessions
}

type landingResponse struct {
	Name         string            `json:"name"`
	Status       domainauth.Status `json:"status"`
	LoginRoute   string            `json:"login_route"`
	LandingRoute string            `json:"landing_route"`
}

type dashboardResponse struct {
	Identity      *domainauth.Identity `json:"identity"`
	Route         string               `json:"route"`
	Connected     bool                 `json:"connected"`
	Notifications int                  `json:"notifications"`
}

// Landing is the public root. Visitors without a session leave the operator's route alone
// while the operator is logged in.
// GET /{$}.
func (h *DashboardHandlers) Landing(w http.ResponseWriter, r *http.Request) {
	snap := h.Session.Snapshot()
	if _, signedIn := h.Sessions.Current(r, snap); signedIn || !snap.Authenticated() {
		h.Tracker.Visit(r.URL.Path)
	}
	policy := h.Tracker.Policy()
	WriteJSON(w, http.StatusOK, landingResponse{
		Name:         "desa-admin",
		Status:       snap.Status,
		LoginRoute:   policy.LoginRoute,
		LandingRoute: policy.LandingRoute,
	})
}

// Dashboard summarizes the operator session. Requires RequireSession.
// GET /dashboard.
func (h *DashboardHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	resp := dashboardResponse{Identity: identity, Route: h.Tracker.Current()}
	if h.Feed != nil {
		resp.Connected = h.Feed.Connected()
		resp.Notifications = len(h.Feed.Snapshot())
	}
	WriteJSON(w, http.StatusOK, resp)
}
