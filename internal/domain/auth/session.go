package auth

import "time"

// Session is a browser session issued by POST /login. It admits requests that carry its ID in
// the session cookie for as long as the operator session it was issued for is still current.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Grant     string    `json:"grant"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Admits reports whether the session belongs to the operator session in snap.
func (s Session) Admits(snap Snapshot, now time.Time) bool {
	if !snap.Authenticated() || s.Expired(now) {
		return false
	}
	return s.Grant != "" && s.Grant == snap.Grant && s.UserID == snap.Identity.UserID
}
