package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthorized_ExactMatch(t *testing.T) {
	granted := []Permission{SalesRead, SalesWrite}

	assert.True(t, IsAuthorized(granted, SalesRead))
	assert.True(t, IsAuthorized(granted, SalesWrite))
	assert.False(t, IsAuthorized(granted, ReportsRead))
}

func TestIsAuthorized_AllExpandsWithinCategory(t *testing.T) {
	granted := []Permission{SalesAll}

	assert.True(t, IsAuthorized(granted, SalesRead))
	assert.True(t, IsAuthorized(granted, SalesWrite))
	assert.True(t, IsAuthorized(granted, SalesAll))
	assert.False(t, IsAuthorized(granted, ReportsRead), "all is scoped to its category")
}

func TestIsAuthorized_EmptyAndMalformed(t *testing.T) {
	assert.False(t, IsAuthorized(nil, SalesRead))
	assert.False(t, IsAuthorized([]Permission{SalesAll}, Permission("sales")), "permission without category is never granted")
}

func TestRolePermissions(t *testing.T) {
	assert.NotEmpty(t, RolePermissions("operador"))
	assert.Empty(t, RolePermissions("desconocido"))

	assert.True(t, IsAuthorized(RolePermissions("supervisor"), SalesWrite))
	assert.False(t, IsAuthorized(RolePermissions("operador"), CacheRead))
	assert.True(t, IsAuthorized(RolePermissions("admin"), ReportsRead))
}
