package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/gateway"
)

// recordedRequest captures what the backend saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

func newTestClient(t *testing.T, status int, response string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Query = r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	gw, err := gateway.New(gateway.Config{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	return New(gw), rec
}

func TestClient_Login(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"token":"tok-1"}`)

	res, err := c.Login(context.Background(), domainauth.Credentials{Email: "a@desa.id", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "tok-1", res.Token)
	assert.Nil(t, res.User)
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/api/login", rec.Path)
	assert.Equal(t, "a@desa.id", rec.Body["email"])
}

func TestClient_LoginWithoutTokenIsServerError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{}`)

	_, err := c.Login(context.Background(), domainauth.Credentials{Email: "a@desa.id", Password: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsServer(err))
}

func TestClient_RegisterReturnsUser(t *testing.T) {
	c, rec := newTestClient(t, http.StatusCreated, `{"token":"t","user":{"id":7,"name":"Made","email":"m@desa.id","role":"user"}}`)

	res, err := c.Register(context.Background(), billing.RegisterInput{Name: "Made", BanjarID: "2"})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, domainauth.RoleResident, res.User.Role)
	assert.Equal(t, float64(2), rec.Body["banjar_id"])
}

func TestClient_SearchKramaRequiresThreeCharacters(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":[]}`)

	_, err := c.SearchKrama(context.Background(), " ab ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "Minimal 3 karakter untuk pencarian.", apperrors.UserMessage(err, ""))
	assert.Empty(t, rec.Path, "no request should reach the backend")
}

func TestClient_SearchKrama(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":[{"krama_id":3,"name":"Wayan","nik":"5101"}]}`)

	got, err := c.SearchKrama(context.Background(), "way")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, billing.ID("3"), got[0].ID)
	assert.Equal(t, "q=way", rec.Query)
}

func TestClient_KramaUnpaidBills(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":[{"tagihan_id":12,"total_tagihan":"150000.00"}]}`)

	bills, err := c.KramaUnpaidBills(context.Background(), "3")
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, billing.Amount(150000), bills[0].Total)
	assert.Equal(t, "/api/user/krama/3/unpaid-bills", rec.Path)
}

func TestClient_Checkout(t *testing.T) {
	c, rec := newTestClient(t, http.StatusCreated, `{"transaction_id":55,"total_amount":225000,"status":"pending"}`)

	tx, err := c.Checkout(context.Background(), []billing.ID{"12", "13"}, "QRIS")
	require.NoError(t, err)

	assert.Equal(t, billing.ID("55"), tx.ID)
	assert.Equal(t, billing.TransactionPending, tx.Status)
	assert.Equal(t, []any{float64(12), float64(13)}, rec.Body["tagihan_ids"])
	assert.Equal(t, "QRIS", rec.Body["payment_method"])
}

func TestClient_ConfirmPayment(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"message":"Pembayaran berhasil dikonfirmasi."}`)

	msg, err := c.ConfirmPayment(context.Background(), "55")
	require.NoError(t, err)
	assert.Equal(t, "Pembayaran berhasil dikonfirmasi.", msg)
	assert.Equal(t, float64(55), rec.Body["transaction_id"])
}

func TestClient_MyTransactionsDefaultsToFirstPage(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":[{"transaction_id":1,"total_amount":"5000"}],"meta":{"current_page":1,"last_page":2}}`)

	page, err := c.MyTransactions(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "page=1", rec.Query)
	assert.True(t, page.Meta.HasNext())
	assert.Equal(t, billing.Amount(5000), page.Transactions[0].TotalAmount)
}

func TestClient_ListTagihanOmitsZeroFilters(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"data":[],"meta":{"current_page":1,"last_page":1}}`)

	_, err := c.ListTagihan(context.Background(), billing.ReportFilter{Month: 5, Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "bulan=5&tahun=2024", rec.Query)
}

func TestClient_KramaHistory(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"krama":{"krama_id":3,"name":"Wayan"},"history":[{"tagihan_id":1,"status_pembayaran":"lunas"}]}`)

	h, err := c.KramaHistory(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "/api/krama/3/history", rec.Path)
	assert.Equal(t, "Wayan", h.Krama.Name)
	assert.True(t, h.History[0].IsPaid())
}

func TestClient_DeleteKrama(t *testing.T) {
	c, rec := newTestClient(t, http.StatusNoContent, ``)

	require.NoError(t, c.DeleteKrama(context.Background(), "9"))
	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/api/admin/krama/9", rec.Path)
}

func TestClient_ExportToSheet(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"message":"Export berhasil","spreadsheet_url":"https://docs.example/sheet"}`)

	out, err := c.ExportToSheet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example/sheet", out.SpreadsheetURL)
}

func TestClient_UpdateMyProfileValidation(t *testing.T) {
	c, _ := newTestClient(t, http.StatusUnprocessableEntity, `{"message":"invalid","errors":{"nik":["NIK sudah dipakai."]}}`)

	_, err := c.UpdateMyProfile(context.Background(), billing.ProfileInput{NIK: "1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "NIK sudah dipakai.", apperrors.FirstFieldMessage(err))
}

func TestClient_UpdateMyProfile(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"id":7,"name":"Made Baru","email":"baru@desa.id","role":"user"}`)

	user, err := c.UpdateMyProfile(context.Background(), billing.ProfileInput{
		NIK: "5101", Name: "Made Baru", BanjarID: "2", Email: "baru@desa.id",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.Method)
	assert.Equal(t, "/api/user/my-profile", rec.Path)
	assert.Equal(t, "Made Baru", rec.Body["name"])
	assert.Equal(t, float64(2), rec.Body["banjar_id"])
	assert.NotContains(t, rec.Body, "password", "empty password must not be sent")
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "baru@desa.id", user.Email)
	assert.Equal(t, domainauth.RoleResident, user.Role)
}

func TestClient_AdminEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		call     func(t *testing.T, c *Client)
		method   string
		path     string
		body     map[string]any
	}{
		{
			name:     "krama options",
			status:   http.StatusOK,
			response: `[{"krama_id":3,"nik":"5101","name":"Wayan"}]`,
			call: func(t *testing.T, c *Client) {
				list, err := c.KramaOptions(context.Background())
				require.NoError(t, err)
				require.Len(t, list, 1)
				assert.Equal(t, billing.ID("3"), list[0].ID)
			},
			method: http.MethodGet,
			path:   "/api/admin/krama-list",
		},
		{
			name:     "get krama",
			status:   http.StatusOK,
			response: `{"data":{"krama_id":3,"name":"Wayan","banjar":{"banjar_id":1,"nama_banjar":"Banjar Kaja"}}}`,
			call: func(t *testing.T, c *Client) {
				k, err := c.GetKrama(context.Background(), "3")
				require.NoError(t, err)
				assert.Equal(t, "Wayan", k.Name)
				assert.Equal(t, "Banjar Kaja", k.BanjarName())
			},
			method: http.MethodGet,
			path:   "/api/admin/krama/3",
		},
		{
			name:     "create krama",
			status:   http.StatusCreated,
			response: `{"message":"ok"}`,
			call: func(t *testing.T, c *Client) {
				require.NoError(t, c.CreateKrama(context.Background(), billing.KramaInput{
					NIK: "5101", Name: "Wayan", Gender: billing.GenderMale, BanjarID: "1",
				}))
			},
			method: http.MethodPost,
			path:   "/api/krama",
			body:   map[string]any{"nik": "5101", "name": "Wayan", "gender": "laki-laki", "banjar_id": float64(1)},
		},
		{
			name:     "update krama",
			status:   http.StatusOK,
			response: `{"message":"ok"}`,
			call: func(t *testing.T, c *Client) {
				require.NoError(t, c.UpdateKrama(context.Background(), "3", billing.KramaInput{
					NIK: "5101", Name: "Wayan Sudiarta", Status: billing.StatusKramaTamiu, BanjarID: "2",
				}))
			},
			method: http.MethodPut,
			path:   "/api/admin/krama/3",
			body:   map[string]any{"name": "Wayan Sudiarta", "status": "krama_tamiu", "banjar_id": float64(2)},
		},
		{
			name:     "create tagihan",
			status:   http.StatusCreated,
			response: `{"message":"ok"}`,
			call: func(t *testing.T, c *Client) {
				require.NoError(t, c.CreateTagihan(context.Background(), billing.BillInput{
					KramaID: "3", Period: "2025-01-01", Dues: 50000, Dedosan: 25000, Peturuhan: 10000,
				}))
			},
			method: http.MethodPost,
			path:   "/api/admin/tagihan",
			body: map[string]any{
				"krama_id": float64(3), "tanggal": "2025-01-01",
				"iuran": float64(50000), "dedosan": float64(25000), "peturuhan": float64(10000),
			},
		},
		{
			name:     "validate payment",
			status:   http.StatusOK,
			response: `{"message":"Pembayaran tunai berhasil divalidasi."}`,
			call: func(t *testing.T, c *Client) {
				msg, err := c.ValidatePayment(context.Background(), "12")
				require.NoError(t, err)
				assert.Equal(t, "Pembayaran tunai berhasil divalidasi.", msg)
			},
			method: http.MethodPost,
			path:   "/api/admin/pembayaran",
			body:   map[string]any{"tagihan_id": float64(12)},
		},
		{
			name:     "admin banjar list",
			status:   http.StatusOK,
			response: `[{"banjar_id":1,"nama_banjar":"Banjar Kaja"}]`,
			call: func(t *testing.T, c *Client) {
				list, err := c.AdminBanjarList(context.Background())
				require.NoError(t, err)
				assert.Equal(t, []billing.Banjar{{ID: "1", Name: "Banjar Kaja"}}, list)
			},
			method: http.MethodGet,
			path:   "/api/admin/banjar-list",
		},
		{
			name:     "public banjar list",
			status:   http.StatusOK,
			response: `[{"banjar_id":2,"nama_banjar":"Banjar Kelod"}]`,
			call: func(t *testing.T, c *Client) {
				list, err := c.PublicBanjarList(context.Background())
				require.NoError(t, err)
				assert.Equal(t, []billing.Banjar{{ID: "2", Name: "Banjar Kelod"}}, list)
			},
			method: http.MethodGet,
			path:   "/api/banjar-list-public",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestClient(t, tt.status, tt.response)

			tt.call(t, c)

			assert.Equal(t, tt.method, rec.Method)
			assert.Equal(t, tt.path, rec.Path)
			for k, want := range tt.body {
				assert.Equal(t, want, rec.Body[k], "body field %s", k)
			}
		})
	}
}
