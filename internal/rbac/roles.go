package rbac

import "taskhub/internal/user"

// IsAdmin reports whether role bypasses role checks.
func IsAdmin(role user.Role) bool { return role == user.RoleAdmin }
