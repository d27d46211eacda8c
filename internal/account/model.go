package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of participant roles. Combined layers celebrant and
// vendor privileges on the base guest role.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleCelebrant  Role = "celebrant"
	RoleVendor     Role = "vendor"
	RoleCombined   Role = "combined"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGuest, RoleCelebrant, RoleVendor, RoleCombined, RoleAdmin, RoleSuperAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CanVend reports whether the role carries vendor privileges.
func (r Role) CanVend() bool {
	return r == RoleVendor || r == RoleCombined
}

// Upgrade is the total, one-way upgrade function. Guest and celebrant gain
// vendor privileges by becoming combined; every other role is unchanged, so
// re-requesting an upgrade is a no-op rather than an error.
func (r Role) Upgrade() Role {
	switch r {
	case RoleGuest, RoleCelebrant:
		return RoleCombined
	default:
		return r
	}
}

// Account is a registered participant. The balance is ledger-derived and
// cached on the same row by the ledger store; it is not part of this model.
type Account struct {
	ID          uuid.UUID
	Phone       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
}
