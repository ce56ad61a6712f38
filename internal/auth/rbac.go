package auth

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// DefaultRole is assigned to accounts that register without choosing one.
const DefaultRole = RoleStudent

// ParseRole accepts the canonical role names, ignoring case and surrounding space.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleStaff:
		return RoleStaff, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// RoleSet is the capability set an operation accepts.
type RoleSet []Role

var (
	Anyone       = RoleSet{RoleStudent, RoleStaff, RoleAdmin}
	StaffOrAdmin = RoleSet{RoleStaff, RoleAdmin}
	AdminOnly    = RoleSet{RoleAdmin}
)

func (s RoleSet) Allows(role Role) bool {
	for _, candidate := range s {
		if candidate == role {
			return true
		}
	}
	return false
}
