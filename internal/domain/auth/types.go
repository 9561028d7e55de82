// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of transport/adapter concerns.
package auth

import (
	"strings"
)

// Role represents an application's authorization role.
// The set is closed: anything the backend sends that is not recognised
// becomes RoleUnknown and is handled by an explicit fallback path.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "resident"
	RoleUnknown  Role = "unknown"
)

// wireResident is the value the backend uses for residents.
const wireResident = "user"

// ParseRole maps a backend role string onto the closed Role set.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleAdmin):
		return RoleAdmin
	case wireResident, string(RoleResident):
		return RoleResident
	default:
		return RoleUnknown
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so JSON payloads decode
// straight into the closed set.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// MarshalText writes the backend form of the role.
func (r Role) MarshalText() ([]byte, error) {
	if r == RoleResident {
		return []byte(wireResident), nil
	}
	return []byte(r), nil
}

// User is the identity resolved from the backend profile endpoint.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Phase is the lifecycle position of a session.
type Phase int

const (
	// PhaseUnknown means the stored token has not been validated yet.
	PhaseUnknown Phase = iota
	// PhaseAnonymous means no valid token is held.
	PhaseAnonymous
	// PhaseAuthenticated means a token is held and its user resolved.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SessionState is an immutable snapshot of the session handed to guards and UI.
type SessionState struct {
	Phase Phase
	User  *User
}

// Role returns the role of the authenticated user, or RoleUnknown.
func (s SessionState) Role() Role {
	if s.Phase != PhaseAuthenticated || s.User == nil {
		return RoleUnknown
	}
	return s.User.Role
}

// IsLoading reports whether the session is still being initialised.
func (s SessionState) IsLoading() bool { return s.Phase == PhaseUnknown }

// Credentials carries login input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
