// Package auth defines account roles, the authenticated principal and the
// JWT access/refresh token scheme.
package auth

import (
	"strconv"

	"github.com/go-faster/errors"
)

// Role identifies which account table a user lives in.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCustomer   Role = "customer"
	RoleCafe       Role = "cafe"
	RoleRestaurant Role = "restaurant"
)

// ErrUnknownRole is returned when an account type is not one of the four roles.
var ErrUnknownRole = errors.New("unknown account type")

// Roles lists every role in a stable order.
var Roles = []Role{RoleAdmin, RoleCustomer, RoleCafe, RoleRestaurant}

// ParseRole validates s as a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errors.Wrapf(ErrUnknownRole, "%q", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer, RoleCafe, RoleRestaurant:
		return true
	}
	return false
}

// IsVendor reports whether accounts of this role can own products.
func (r Role) IsVendor() bool {
	return r == RoleCafe || r == RoleRestaurant
}

// Collection returns the plural name used for the role's table and its
// object storage prefix.
func (r Role) Collection() string {
	switch r {
	case RoleAdmin:
		return "admins"
	case RoleCustomer:
		return "customers"
	case RoleCafe:
		return "cafes"
	case RoleRestaurant:
		return "restaurants"
	}
	return ""
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   int64
	Role Role
}

// Is reports whether the principal has one of the given roles.
func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Prefix is the object storage prefix owned by the principal.
func (p Principal) Prefix() string {
	return p.Role.Collection() + "/" + strconv.FormatInt(p.ID, 10) + "/"
}
