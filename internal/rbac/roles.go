package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleUser       = "user"
	RoleOperator   = "operator"
	RoleFinance    = "finance"
	RoleSupport    = "support"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsOperatorRole reports whether the role may touch settlement state at all.
func IsOperatorRole(role string) bool {
	return role == RoleOperator || role == RoleFinance || role == RoleSuperAdmin
}
