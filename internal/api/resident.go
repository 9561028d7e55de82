package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/gateway"
	"github.com/kramabill/billing-krama/internal/ports"
)

// MyUnpaidBills lists the signed-in resident's own open bills.
func (c *Client) MyUnpaidBills(ctx context.Context) ([]billing.Bill, error) {
	var env dataEnvelope[[]billing.Bill]
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/user/my-unpaid-bills"}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// SearchKrama finds residents by name or NIK. Queries shorter than three
// characters are rejected locally.
func (c *Client) SearchKrama(ctx context.Context, query string) ([]billing.Krama, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < billing.MinSearchQueryRune {
		return nil, apperrors.ValidationField("q", "Minimal 3 karakter untuk pencarian.")
	}
	var env dataEnvelope[[]billing.Krama]
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/user/search-krama",
		Query:  url.Values{"q": {query}},
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// KramaUnpaidBills lists the open bills of another resident so they can be
// paid on that resident's behalf.
func (c *Client) KramaUnpaidBills(ctx context.Context, kramaID billing.ID) ([]billing.Bill, error) {
	var env dataEnvelope[[]billing.Bill]
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/user/krama/" + url.PathEscape(kramaID.String()) + "/unpaid-bills",
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

type checkoutRequest struct {
	BillIDs       []billing.ID `json:"tagihan_ids"`
	PaymentMethod string       `json:"payment_method"`
}

// Checkout turns the selected bills into one pending transaction.
func (c *Client) Checkout(ctx context.Context, billIDs []billing.ID, paymentMethod string) (billing.Transaction, error) {
	var tx billing.Transaction
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/user/checkout",
		Body:   checkoutRequest{BillIDs: billIDs, PaymentMethod: paymentMethod},
	}, &tx)
	if err != nil {
		return billing.Transaction{}, err
	}
	if tx.ID.IsZero() {
		return billing.Transaction{}, apperrors.Server("Respons checkout tidak berisi transaksi.")
	}
	return tx, nil
}

// ConfirmPayment marks a pending transaction as paid and returns the
// backend's confirmation message.
func (c *Client) ConfirmPayment(ctx context.Context, transactionID billing.ID) (string, error) {
	var resp messageResponse
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/user/confirm-payment",
		Body:   map[string]billing.ID{"transaction_id": transactionID},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// MyTransactions returns one page of payment history.
func (c *Client) MyTransactions(ctx context.Context, page int) (billing.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	var out billing.TransactionPage
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/user/my-transactions",
		Query:  url.Values{"page": {strconv.Itoa(page)}},
	}, &out)
	return out, err
}

// MyProfile returns the resident record linked to the signed-in account.
func (c *Client) MyProfile(ctx context.Context) (billing.Krama, error) {
	var env dataEnvelope[billing.Krama]
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/user/my-profile"}, &env); err != nil {
		return billing.Krama{}, err
	}
	return env.Data, nil
}

// UpdateMyProfile saves a profile edit and returns the refreshed account.
func (c *Client) UpdateMyProfile(ctx context.Context, in billing.ProfileInput) (domainauth.User, error) {
	var user domainauth.User
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodPut, Path: "/user/my-profile", Body: in}, &user)
	return user, err
}

// UserDashboardStats returns the resident dashboard counters.
func (c *Client) UserDashboardStats(ctx context.Context) (billing.Stats, error) {
	var out billing.Stats
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/user/dashboard-stats"}, &out)
	return out, err
}

// PublicBanjarList lists wards for the registration form. It needs no token.
func (c *Client) PublicBanjarList(ctx context.Context) ([]billing.Banjar, error) {
	var out []billing.Banjar
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/banjar-list-public"}, &out)
	return out, err
}

var (
	_ ports.PaymentAPI = (*Client)(nil)
	_ ports.BillLister = (*Client)(nil)
)
