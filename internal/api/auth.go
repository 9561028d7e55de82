package api

import (
	"context"
	"net/http"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/gateway"
	"github.com/kramabill/billing-krama/internal/ports"
)

type authResponse struct {
	Token string           `json:"token"`
	User  *domainauth.User `json:"user,omitempty"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds domainauth.Credentials) (ports.AuthResult, error) {
	var resp authResponse
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/login",
		Body:   map[string]string{"email": creds.Email, "password": creds.Password},
	}, &resp)
	if err != nil {
		return ports.AuthResult{}, err
	}
	if resp.Token == "" {
		return ports.AuthResult{}, apperrors.Server("Respons login tidak berisi token.")
	}
	return ports.AuthResult{Token: resp.Token, User: resp.User}, nil
}

// Register creates a resident account. The token is empty when the backend
// does not sign the new account in.
func (c *Client) Register(ctx context.Context, in billing.RegisterInput) (ports.AuthResult, error) {
	var resp authResponse
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/register", Body: in}, &resp)
	if err != nil {
		return ports.AuthResult{}, err
	}
	return ports.AuthResult{Token: resp.Token, User: resp.User}, nil
}

// Profile resolves the identity behind the current token.
func (c *Client) Profile(ctx context.Context) (domainauth.User, error) {
	var user domainauth.User
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/profile"}, &user); err != nil {
		return domainauth.User{}, err
	}
	return user, nil
}

// Logout revokes the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.doer.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/logout"}, nil)
}

var _ ports.AuthAPI = (*Client)(nil)
