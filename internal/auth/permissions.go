// Package auth holds the permission model used to gate ledger operations.
// Authorization is a pure function over a granted set; session handling and
// the identity provider live outside this service.
package auth

import "strings"

// Permission is "category:action", e.g. "sales:write". The action "all"
// grants every action of its category.
type Permission string

const (
	SalesRead   Permission = "sales:read"
	SalesWrite  Permission = "sales:write"
	SalesAll    Permission = "sales:all"
	ReportsRead Permission = "reports:read"
	ReportsAll  Permission = "reports:all"
	CacheRead   Permission = "cache:read"
	AdminAll    Permission = "admin:all"
)

// Roles maps the application roles to their granted permissions.
var Roles = map[string][]Permission{
	"operador":   {SalesRead, SalesWrite},
	"supervisor": {SalesAll, ReportsRead},
	"admin":      {SalesAll, ReportsAll, CacheRead, AdminAll},
}

// Category returns the part before the colon, or "" when malformed.
func (p Permission) Category() string {
	i := strings.IndexByte(string(p), ':')
	if i < 0 {
		return ""
	}
	return string(p)[:i]
}

// IsAuthorized reports whether the granted set covers required. A grant of
// "category:all" covers every permission of that category.
func IsAuthorized(granted []Permission, required Permission) bool {
	cat := required.Category()
	if cat == "" {
		return false
	}
	for _, g := range granted {
		if g == required {
			return true
		}
		if g.Category() == cat && strings.HasSuffix(string(g), ":all") {
			return true
		}
	}
	return false
}

// RolePermissions resolves a role name to its granted set; unknown roles get
// nothing.
func RolePermissions(role string) []Permission {
	return Roles[role]
}
