// Package permissions maps token roles onto ledger permissions and checks
// them with wildcard support.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "inventory.*")
//   - "resource.action" - Specific action (e.g., "inventory.read")
//   - "resource.subresource.action" - Nested permission (e.g., "inventory.stock.write")
package permissions

import (
	"strings"
)

// Ledger permissions
const (
	InventoryRead         = "inventory.read"
	InventoryStockWrite   = "inventory.stock.write"
	InventoryCatalogWrite = "inventory.catalog.write"
	InventoryAlertsManage = "inventory.alerts.manage"
	InventoryImport       = "inventory.import"
)

// Roles carried in the token role claim
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleClerk   = "clerk"
	RoleViewer  = "viewer"
)

var rolePermissions = map[string][]string{
	RoleAdmin:   {"*"},
	RoleManager: {"inventory.*"},
	RoleClerk:   {InventoryRead, InventoryStockWrite, InventoryAlertsManage},
	RoleViewer:  {InventoryRead},
}

// ForRole returns the permissions granted to a role. Unknown roles get none.
func ForRole(role string) []string {
	return rolePermissions[strings.ToLower(strings.TrimSpace(role))]
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "inventory.*" matches "inventory.read", "inventory.stock.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "inventory.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// RoleAllows reports whether role grants the required permission
func RoleAllows(role, required string) bool {
	return HasPermission(ForRole(role), required)
}
