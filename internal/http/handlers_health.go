package httpx

import (
	"net/http"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
)

type healthResponse struct {
	Status         string            `json:"status"`
	Session        domainauth.Status `json:"session"`
	RelayConnected bool              `json:"relay_connected"`
}

// HealthHandler reports liveness along with the session and relay state.
// It never waits on a pending session resolution.
type HealthHandler struct {
	Session SessionService
	Feed    NotificationFeed
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	resp := healthResponse{Status: "ok"}
	if h.Session != nil {
		resp.Session = h.Session.Snapshot().Status
	}
	if h.Feed != nil {
		resp.RelayConnected = h.Feed.Connected()
	}
	WriteJSON(w, http.StatusOK, resp)
}
