// Package model defines the records shared by the registry, the directory and
// the ledger. Structs carry json tags so the CLI and the audit feed can print
// them directly.
package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of roles a principal may hold. A principal holds at
// most one role. The numeric values are persisted, so never reorder them.
type Role int

const (
	RoleCandidate Role = iota
	RoleRecruiter
	RoleCompanyAdmin
	RoleRecruiterAdmin
	RoleAdmin
)

var roleNames = [...]string{
	RoleCandidate:      "candidate",
	RoleRecruiter:      "recruiter",
	RoleCompanyAdmin:   "company-admin",
	RoleRecruiterAdmin: "recruiter-admin",
	RoleAdmin:          "admin",
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleCandidate && r <= RoleAdmin
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole accepts either the role name ("company-admin") or its number ("2").
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range roleNames {
		if s == name || s == fmt.Sprint(i) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("model: unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("model: invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
