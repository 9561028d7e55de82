// Package mocks provides mock implementations for testing the billing client.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	tokens := mocks.NewMockTokenStore(ctrl)
//	tokens.EXPECT().Load(gomock.Any()).Return("token", nil)
package mocks

// Generate mock for TokenStore interface from internal/ports package.
// This creates MockTokenStore with methods for all TokenStore interface methods:
// Load, Save, Clear
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_store_mock.go github.com/kramabill/billing-krama/internal/ports TokenStore

// Generate mock for AuthAPI interface from internal/ports package.
// This creates MockAuthAPI with methods for all AuthAPI interface methods:
// Login, Register, Profile, Logout
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_api_mock.go github.com/kramabill/billing-krama/internal/ports AuthAPI

// Generate mock for PaymentAPI interface from internal/ports package.
// This creates MockPaymentAPI with methods for all PaymentAPI interface methods:
// Checkout, ConfirmPayment
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=payment_api_mock.go github.com/kramabill/billing-krama/internal/ports PaymentAPI
