package authroles

import (
	"strings"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
)

// StaticRoleMapper maps upstream role names or groups by case-insensitive membership rules.
// Admin names win over user names; anything else is a guest.
type StaticRoleMapper struct {
	AdminNames []string
	UserNames  []string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if matchesAny(groups, m.AdminNames) {
		return domainauth.RoleAdmin
	}
	if matchesAny(groups, m.UserNames) {
		return domainauth.RoleUser
	}
	return domainauth.RoleGuest
}

func matchesAny(groups, names []string) bool {
	for _, g := range groups {
		g = strings.TrimSpace(g)
		for _, n := range names {
			if n != "" && strings.EqualFold(g, strings.TrimSpace(n)) {
				return true
			}
		}
	}
	return false
}
