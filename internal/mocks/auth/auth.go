// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"sync"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthAPI    = (*FakeAuthAPI)(nil)
	_ ports.TokenStore = (*MemoryTokenStore)(nil)
)

// FakeAuthAPI simulates the backend auth endpoints with deterministic results.
// Any *Func field overrides the default behavior for that call.
type FakeAuthAPI struct {
	LoginFunc    func(ctx context.Context, creds domainauth.Credentials) (ports.AuthResult, error)
	RegisterFunc func(ctx context.Context, in billing.RegisterInput) (ports.AuthResult, error)
	ProfileFunc  func(ctx context.Context) (domainauth.User, error)
	LogoutFunc   func(ctx context.Context) error

	// Deterministic values for predictable testing
	Token       string
	DefaultUser domainauth.User

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeAuthAPI creates a FakeAuthAPI issuing "token-1" for a resident.
func NewFakeAuthAPI() *FakeAuthAPI {
	return &FakeAuthAPI{
		Token: "token-1",
		DefaultUser: domainauth.User{
			ID:    1,
			Name:  "Made Resident",
			Email: "made@desa.example",
			Role:  domainauth.RoleResident,
		},
	}
}

func (f *FakeAuthAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Calls reports how many times a method was invoked.
func (f *FakeAuthAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *FakeAuthAPI) Login(ctx context.Context, creds domainauth.Credentials) (ports.AuthResult, error) {
	f.record("Login")
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, creds)
	}
	return ports.AuthResult{Token: f.token()}, nil
}

func (f *FakeAuthAPI) Register(ctx context.Context, in billing.RegisterInput) (ports.AuthResult, error) {
	f.record("Register")
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, in)
	}
	user := f.DefaultUser
	user.Name = in.Name
	user.Email = in.Email
	return ports.AuthResult{Token: f.token(), User: &user}, nil
}

func (f *FakeAuthAPI) Profile(ctx context.Context) (domainauth.User, error) {
	f.record("Profile")
	if f.ProfileFunc != nil {
		return f.ProfileFunc(ctx)
	}
	return f.DefaultUser, nil
}

func (f *FakeAuthAPI) Logout(ctx context.Context) error {
	f.record("Logout")
	if f.LogoutFunc != nil {
		return f.LogoutFunc(ctx)
	}
	return nil
}

func (f *FakeAuthAPI) token() string {
	if f.Token == "" {
		return "token-1"
	}
	return f.Token
}

// MemoryTokenStore is an in-memory token store for unit tests.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string

	// Optional injected failures
	LoadErr  error
	SaveErr  error
	ClearErr error
}

// NewMemoryTokenStore creates a store pre-populated with token ("" for none).
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (m *MemoryTokenStore) Load(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return "", m.LoadErr
	}
	return m.token, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.token = ""
	return nil
}

// Stored returns the token currently held.
func (m *MemoryTokenStore) Stored() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}
