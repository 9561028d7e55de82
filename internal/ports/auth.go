// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters and internal/api; orchestration in
// internal/session and internal/checkout.
package ports

import (
	"context"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
)

// TokenStore persists the bearer token across process restarts.
// An empty token with a nil error means no token is stored.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// AuthResult is what the backend returns on login and registration.
// User is nil when the backend leaves identity resolution to the profile call.
type AuthResult struct {
	Token string
	User  *domainauth.User
}

// AuthAPI issues and resolves sessions against the backend.
type AuthAPI interface {
	Login(ctx context.Context, creds domainauth.Credentials) (AuthResult, error)
	Register(ctx context.Context, in billing.RegisterInput) (AuthResult, error)
	Profile(ctx context.Context) (domainauth.User, error)
	Logout(ctx context.Context) error
}
