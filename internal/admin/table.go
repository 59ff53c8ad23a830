package admin

import (
	"gopkg.in/yaml.v3"

	"plaza.social/internal/auth"
)

// RolePermissions is one row of the exported permission table.
type RolePermissions struct {
	Role        string   `yaml:"role" json:"role"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

// PermissionTable lists every assignable role with its permissions.
func PermissionTable() []RolePermissions {
	roles := auth.AllRoles()
	out := make([]RolePermissions, 0, len(roles))
	for _, r := range roles {
		perms := auth.PermissionsFor(r).Sorted()
		names := make([]string, len(perms))
		for i, p := range perms {
			names[i] = string(p)
		}
		out = append(out, RolePermissions{Role: r.String(), Permissions: names})
	}
	return out
}

// PermissionTableYAML renders PermissionTable for operators.
func PermissionTableYAML() ([]byte, error) {
	return yaml.Marshal(map[string][]RolePermissions{"roles": PermissionTable()})
}
