// Package navigation holds the route-redirection policy for the dashboard.
package navigation

import (
	"path"
	"strings"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
)

const (
	DefaultLoginRoute   = "/login"
	DefaultLandingRoute = "/dashboard"
	DefaultPublicRoot   = "/"
)

// Policy decides when the current route must be replaced by the login route.
// PublicRoutes entries ending in "/" (other than the root) match as prefixes.
type Policy struct {
	LoginRoute   string
	LandingRoute string
	PublicRoutes []string
}

// DefaultPolicy returns the policy with the landing page and login page public.
func DefaultPolicy() Policy {
	return Policy{
		LoginRoute:   DefaultLoginRoute,
		LandingRoute: DefaultLandingRoute,
		PublicRoutes: []string{DefaultPublicRoot, DefaultLoginRoute},
	}
}

// Normalize fills empty fields with defaults and guarantees the login route is public.
func (p Policy) Normalize() Policy {
	if p.LoginRoute == "" {
		p.LoginRoute = DefaultLoginRoute
	}
	if p.LandingRoute == "" {
		p.LandingRoute = DefaultLandingRoute
	}
	if len(p.PublicRoutes) == 0 {
		p.PublicRoutes = []string{DefaultPublicRoot}
	}
	routes := make([]string, 0, len(p.PublicRoutes)+1)
	hasLogin := false
	for _, r := range p.PublicRoutes {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if r == p.LoginRoute {
			hasLogin = true
		}
		routes = append(routes, r)
	}
	if !hasLogin {
		routes = append(routes, p.LoginRoute)
	}
	p.PublicRoutes = routes
	return p
}

// IsPublic reports whether route is reachable without an authenticated session.
func (p Policy) IsPublic(route string) bool {
	clean := CleanRoute(route)
	for _, r := range p.PublicRoutes {
		if r == clean {
			return true
		}
		if len(r) > 1 && strings.HasSuffix(r, "/") && strings.HasPrefix(clean+"/", r) {
			return true
		}
	}
	return false
}

// Decide returns the route to force-navigate to, if any.
// No redirect is ever produced while status is StatusUnknown.
func (p Policy) Decide(status domainauth.Status, route string) (string, bool) {
	if status != domainauth.StatusUnauthenticated {
		return "", false
	}
	if p.IsPublic(route) {
		return "", false
	}
	return p.LoginRoute, true
}

// CleanRoute strips query strings and normalizes the path portion of route.
func CleanRoute(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return path.Clean(route)
}
