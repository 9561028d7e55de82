// Package api exposes the billing backend's REST endpoints as typed calls.
// Every request goes through the gateway so credentials, expiry handling and
// error shaping stay in one place.
package api

import (
	"context"

	"github.com/kramabill/billing-krama/internal/gateway"
)

// Doer executes one backend request. *gateway.Gateway satisfies it.
type Doer interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// Client is the typed backend client.
type Client struct {
	doer Doer
}

// New returns a Client over doer.
func New(doer Doer) *Client {
	return &Client{doer: doer}
}

// dataEnvelope unwraps the {"data": ...} shape most list endpoints use.
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}
