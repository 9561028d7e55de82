package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/gateway"
)

func kramaPath(id billing.ID) string {
	return "/admin/krama/" + url.PathEscape(id.String())
}

// AdminDashboardStats returns the admin dashboard counters.
func (c *Client) AdminDashboardStats(ctx context.Context) (billing.Stats, error) {
	var out billing.Stats
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/dashboard-stats"}, &out)
	return out, err
}

// AdminDashboardChart returns the monthly collection series.
func (c *Client) AdminDashboardChart(ctx context.Context) (billing.Chart, error) {
	var out billing.Chart
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/dashboard-chart"}, &out)
	return out, err
}

// ListKrama returns every resident with ward details.
func (c *Client) ListKrama(ctx context.Context) ([]billing.Krama, error) {
	var env dataEnvelope[[]billing.Krama]
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/krama"}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// KramaOptions returns the compact resident list used by the bill form.
func (c *Client) KramaOptions(ctx context.Context) ([]billing.Krama, error) {
	var out []billing.Krama
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/krama-list"}, &out)
	return out, err
}

// GetKrama returns one resident.
func (c *Client) GetKrama(ctx context.Context, id billing.ID) (billing.Krama, error) {
	var env dataEnvelope[billing.Krama]
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: kramaPath(id)}, &env); err != nil {
		return billing.Krama{}, err
	}
	return env.Data, nil
}

// CreateKrama registers a resident on behalf of the administration.
func (c *Client) CreateKrama(ctx context.Context, in billing.KramaInput) error {
	return c.doer.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/krama", Body: in}, nil)
}

// UpdateKrama saves changes to a resident.
func (c *Client) UpdateKrama(ctx context.Context, id billing.ID, in billing.KramaInput) error {
	return c.doer.Do(ctx, gateway.Request{Method: http.MethodPut, Path: kramaPath(id), Body: in}, nil)
}

// DeleteKrama removes a resident.
func (c *Client) DeleteKrama(ctx context.Context, id billing.ID) error {
	return c.doer.Do(ctx, gateway.Request{Method: http.MethodDelete, Path: kramaPath(id)}, nil)
}

// KramaHistory returns a resident together with every bill issued to them.
func (c *Client) KramaHistory(ctx context.Context, id billing.ID) (billing.KramaHistory, error) {
	var out billing.KramaHistory
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/krama/" + url.PathEscape(id.String()) + "/history",
	}, &out)
	return out, err
}

// CreateTagihan issues a bill.
func (c *Client) CreateTagihan(ctx context.Context, in billing.BillInput) error {
	return c.doer.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/admin/tagihan", Body: in}, nil)
}

// ListTagihan returns the report page for a month. Zero fields are omitted
// so the backend applies its own defaults.
func (c *Client) ListTagihan(ctx context.Context, f billing.ReportFilter) (billing.BillPage, error) {
	q := url.Values{}
	if f.Month > 0 {
		q.Set("bulan", strconv.Itoa(f.Month))
	}
	if f.Year > 0 {
		q.Set("tahun", strconv.Itoa(f.Year))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	var out billing.BillPage
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/tagihan", Query: q}, &out)
	return out, err
}

// ValidatePayment records a manual (cash) payment for a bill.
func (c *Client) ValidatePayment(ctx context.Context, billID billing.ID) (string, error) {
	var resp messageResponse
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/admin/pembayaran",
		Body:   map[string]billing.ID{"tagihan_id": billID},
	}, &resp)
	return resp.Message, err
}

// ExportToSheet asks the backend to export the report to a spreadsheet.
func (c *Client) ExportToSheet(ctx context.Context) (billing.SheetExport, error) {
	var out billing.SheetExport
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/export-to-sheet"}, &out)
	return out, err
}

// AdminBanjarList lists wards for the admin resident forms.
func (c *Client) AdminBanjarList(ctx context.Context) ([]billing.Banjar, error) {
	var out []billing.Banjar
	err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/admin/banjar-list"}, &out)
	return out, err
}
