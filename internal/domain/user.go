package domain

import "time"

// Role enumerates the access levels recognized by the service.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupport  Role = "support"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleCustomer, RoleSupport, RoleAdmin:
		return Role(raw), true
	}
	return "", false
}

// User is an account that can authenticate against the service.
// Support-role users double as agents eligible for ticket assignment.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated caller attached to every operation.
// It carries just enough to make authorization and ownership checks.
type Identity struct {
	ID       string
	Username string
	Role     Role
}

// IsStaff reports whether the identity may perform support or admin
// operations such as status updates and reassignment.
func (i Identity) IsStaff() bool {
	return i.Role == RoleSupport || i.Role == RoleAdmin
}
