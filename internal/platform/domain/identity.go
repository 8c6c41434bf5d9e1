package domain

import "time"

// Identity is a platform account as the identity core sees it. The record is
// owned by the customer/staff management side of the platform; the core reads
// it during authentication and may flip the lock flag.
type Identity struct {
	ID           int64
	Name         string
	Email        string
	NationalID   string // secondary login identifier, unique
	Role         string
	PasswordHash string // argon2id PHC encoded
	Locked       bool   // operator override, independent of the computed lockout window
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Well-known roles. Permissions are derived from the role at token issuance,
// so a token always mirrors the identity's role at that moment.
const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleCustomer   = "customer"
)

var rolePermissions = map[string][]string{
	RoleAdmin:      {"catalog:write", "orders:manage", "invoices:manage", "audit:read", "alerts:read"},
	RolePharmacist: {"catalog:write", "orders:manage", "invoices:manage"},
	RoleCustomer:   {"catalog:read", "cart:write", "orders:read"},
}

// PermissionsForRole returns the permission set embedded in tokens for a role.
// Unknown roles get no permissions rather than an error; the token is still
// issued and downstream role checks will reject it where it matters.
func PermissionsForRole(role string) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
