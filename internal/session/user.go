package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is a fixed presentation role. It gates navigation only.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleReviewer   Role = "REVIEWER"
	RoleDepartment Role = "DEPARTMENT"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleReviewer, RoleDepartment:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is the signed-in official.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Department string `json:"department"`
}

// IsAdmin reports whether the admin tab should be shown.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// decodeUser parses a stored record. Anything unusable is an error.
func decodeUser(payload []byte) (User, error) {
	var u User
	if err := json.Unmarshal(payload, &u); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(u.ID) == "" {
		return User{}, errors.New("stored session has no user id")
	}
	role, err := ParseRole(string(u.Role))
	if err != nil {
		return User{}, err
	}
	u.Role = role
	return u, nil
}
