package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kramabill/billing-krama/config"
	"github.com/kramabill/billing-krama/internal/checkout"
	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	mockauth "github.com/kramabill/billing-krama/internal/mocks/auth"
	"github.com/kramabill/billing-krama/internal/nav"
	"github.com/kramabill/billing-krama/internal/notify"
	"github.com/kramabill/billing-krama/internal/observability/metrics"
	"github.com/kramabill/billing-krama/internal/testutil"
	"github.com/kramabill/billing-krama/internal/testutil/backendtest"
)

const (
	residentEmail    = "made@desa.example"
	residentPassword = "rahasia123"
)

type appFixture struct {
	app     *App
	backend *backendtest.Backend
	tokens  *mockauth.MemoryTokenStore
	notices *notify.Recorder
	metrics *testutil.MetricsRecorder
}

func newAppFixture(t *testing.T, storedToken string) *appFixture {
	t.Helper()

	backend := backendtest.New(t)
	backend.AddResident(residentEmail, residentPassword, billing.Krama{ID: "1", Name: "Made Resident", NIK: "5108010101900001"})
	backend.AddBills(testutil.TwoUnpaidBills()...)
	if storedToken == "issue" {
		storedToken = backend.IssueToken(residentEmail)
	}

	cfg := config.AppConfig{}
	cfg.Sanitize()
	cfg.API.BaseURL = backend.URL()
	cfg.API.RateLimitRPS = 0
	cfg.UI.ConfirmRedirectDelay = 20 * time.Millisecond

	f := &appFixture{
		backend: backend,
		tokens:  mockauth.NewMemoryTokenStore(storedToken),
		notices: &notify.Recorder{},
		metrics: &testutil.MetricsRecorder{},
	}

	app, err := NewApp(context.Background(), AppOptions{
		Config:  &cfg,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Notices: f.notices,
		Tokens:  f.tokens,
		Metrics: f.metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })
	f.app = app
	return f
}

func TestNewApp_RequiresConfig(t *testing.T) {
	_, err := NewApp(context.Background(), AppOptions{})
	require.Error(t, err)
}

func TestNewApp_RejectsBadBaseURL(t *testing.T) {
	cfg := config.AppConfig{}
	cfg.Sanitize()
	cfg.API.BaseURL = "ftp://example.com"

	_, err := NewApp(context.Background(), AppOptions{
		Config: &cfg,
		Tokens: mockauth.NewMemoryTokenStore(""),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway")
}

func TestApp_StartWithoutTokenLandsOnLogin(t *testing.T) {
	f := newAppFixture(t, "")

	out := f.app.Start(context.Background())

	assert.Equal(t, nav.PathLogin, out.Path())
	assert.Equal(t, domainauth.PhaseAnonymous, f.app.Session.State().Phase)
	assert.Equal(t, 0, f.backend.Count(http.MethodGet, "/profile"))
}

func TestApp_StartReplaysStoredToken(t *testing.T) {
	f := newAppFixture(t, "issue")

	out := f.app.Start(context.Background())

	assert.Equal(t, nav.PathResidentHome, out.Path())
	assert.Equal(t, []string{nav.PathAdminHome, nav.PathResidentHome}, out.Redirects)
	assert.Equal(t, domainauth.RoleResident, f.app.Session.State().Role())
	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/profile"))
}

func TestApp_StartWithRevokedTokenClearsIt(t *testing.T) {
	f := newAppFixture(t, "stale-token")

	out := f.app.Start(context.Background())

	assert.Equal(t, nav.PathLogin, out.Path())
	assert.Empty(t, f.tokens.Stored())
	assert.Empty(t, f.notices.Notices(), "no expiry notice before a session existed")
}

func TestApp_ResidentCheckoutAndPayment(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, "")
	f.app.Start(ctx)

	require.NoError(t, f.app.Session.Login(ctx, residentEmail, residentPassword))
	assert.NotEmpty(t, f.tokens.Stored())

	out := f.app.Navigator.Open(nav.PathRoot)
	require.Equal(t, nav.PathResidentHome, out.Path())

	bills, err := f.app.API.MyUnpaidBills(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	for _, b := range bills {
		require.NoError(t, f.app.Checkout.Apply(checkout.BillAction(b)))
	}
	assert.Equal(t, billing.Amount(225000), f.app.Cart.Total())

	tx, err := f.app.Checkout.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, billing.ID("501"), tx.ID)
	assert.Equal(t, billing.Amount(225000), tx.TotalAmount)
	assert.Equal(t, "/user/payment/501", f.app.Navigator.Current())
	assert.Zero(t, f.app.Cart.Len())

	stored, ok := f.backend.Transaction("501")
	require.True(t, ok)
	assert.Equal(t, billing.TransactionPending, stored.Status)
	assert.Equal(t, "QRIS", stored.PaymentMethod)

	require.NoError(t, f.app.Checkout.ConfirmPayment(ctx, tx.ID))
	assert.True(t, f.app.Checkout.PaymentView(tx.ID).Paid)

	require.Eventually(t, func() bool {
		return f.app.Navigator.Current() == nav.PathMyBills
	}, 2*time.Second, 5*time.Millisecond)

	bill, ok := f.backend.Bill("11")
	require.True(t, ok)
	assert.True(t, bill.IsPaid())

	assert.Equal(t, []string{metrics.ResultSuccess}, f.metrics.Counted(metrics.CheckoutSubmit))
	assert.Equal(t, []string{metrics.ResultSuccess}, f.metrics.Counted(metrics.PaymentConfirm))
	notices := f.notices.Notices()
	assert.Equal(t, 4, f.notices.Count(notify.LevelSuccess), "two cart adds, checkout and confirmation")
	assert.Equal(t, notify.Success("Pembayaran berhasil dikonfirmasi."), notices[len(notices)-1])
}

func TestApp_CheckoutFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, "issue")
	f.app.Start(ctx)

	for _, b := range testutil.TwoUnpaidBills() {
		require.NoError(t, f.app.Cart.Add(b))
	}
	f.backend.FailNext(http.MethodPost, "/user/checkout", http.StatusConflict, `{"message":"Tagihan sudah dibayar."}`)

	_, err := f.app.Checkout.Checkout(ctx)
	require.Error(t, err)

	assert.Equal(t, 2, f.app.Cart.Len())
	assert.Equal(t, nav.PathResidentHome, f.app.Navigator.Current())
	notices := f.notices.Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, notify.Error("Tagihan sudah dibayar."), notices[len(notices)-1])
}

func TestApp_ExpiredSessionRedirectsToLoginOnce(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, "issue")
	require.Equal(t, nav.PathResidentHome, f.app.Start(ctx).Path())

	f.backend.ExpireSessions()

	_, err := f.app.API.MyUnpaidBills(ctx)
	require.Error(t, err)
	_, err = f.app.API.UserDashboardStats(ctx)
	require.Error(t, err)

	assert.Equal(t, nav.PathLogin, f.app.Navigator.Current())
	assert.Equal(t, domainauth.PhaseAnonymous, f.app.Session.State().Phase)
	assert.Empty(t, f.tokens.Stored())
	assert.Equal(t, 1, f.notices.Count(notify.LevelInfo))
	assert.Equal(t, []string{metrics.ResultSuccess}, f.metrics.Counted(metrics.SessionInvalidated))
}

func TestApp_LogoutRevokesBackendToken(t *testing.T) {
	ctx := context.Background()
	f := newAppFixture(t, "issue")
	f.app.Start(ctx)

	f.app.Session.Logout(ctx)

	assert.Equal(t, 1, f.backend.Count(http.MethodPost, "/logout"))
	assert.Empty(t, f.tokens.Stored())
	assert.Equal(t, nav.PathLogin, f.app.Navigator.Open(nav.PathMyBills).Path())
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	f := newAppFixture(t, "")
	require.NoError(t, f.app.Close())
	require.NoError(t, f.app.Close())
}
