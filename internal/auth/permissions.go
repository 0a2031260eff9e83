package auth

import "slices"

// Permission is a named capability.
type Permission string

const (
	PermDeviceReadOwn   Permission = "device:read:own"
	PermDeviceManageOwn Permission = "device:manage:own"
	PermDeviceManageAll Permission = "device:manage:all"
	PermAuditRead       Permission = "audit:read"
	PermSystemAdmin     Permission = "system:admin"
)

// rolePermissions is the whole authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermDeviceReadOwn,
		PermDeviceManageOwn,
	},
	RoleAdmin: {
		PermDeviceReadOwn,
		PermDeviceManageOwn,
		PermDeviceManageAll,
		PermAuditRead,
	},
	RoleOwner: {
		PermDeviceReadOwn,
		PermDeviceManageOwn,
		PermDeviceManageAll,
		PermAuditRead,
		PermSystemAdmin,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of role's permissions, or nil for an
// unknown role.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
