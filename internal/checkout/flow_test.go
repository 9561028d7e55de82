package checkout

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kramabill/billing-krama/internal/cart"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/mocks"
	"github.com/kramabill/billing-krama/internal/notify"
	"github.com/kramabill/billing-krama/internal/observability/metrics"
	"github.com/kramabill/billing-krama/internal/testutil"
)

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingNavigator) Navigate(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recordingNavigator) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func (r *recordingNavigator) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type scheduled struct {
	delay     time.Duration
	path      string
	cancelled bool
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []*scheduled
}

func (f *fakeScheduler) After(delay time.Duration, path string) func() {
	s := &scheduled{delay: delay, path: path}
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		s.cancelled = true
		f.mu.Unlock()
	}
}

type fixture struct {
	api       *mocks.MockPaymentAPI
	cart      *cart.Store
	nav       *recordingNavigator
	scheduler *fakeScheduler
	notices   *notify.Recorder
	metrics   *testutil.MetricsRecorder
	flow      *Flow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	fx := &fixture{
		api:       mocks.NewMockPaymentAPI(ctrl),
		nav:       &recordingNavigator{},
		scheduler: &fakeScheduler{},
		notices:   &notify.Recorder{},
		metrics:   &testutil.MetricsRecorder{},
	}
	fx.cart = cart.New(cart.Options{Notices: notify.Discard})

	flow, err := New(Options{
		Payments:  fx.api,
		Cart:      fx.cart,
		Navigator: fx.nav,
		Scheduler: fx.scheduler,
		Notices:   fx.notices,
		Metrics:   fx.metrics,
	})
	require.NoError(t, err)
	fx.flow = flow
	return fx
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestCheckout_EmptyCartMakesNoCall(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.flow.Checkout(context.Background())

	assert.True(t, apperrors.IsEmptyCart(err))
	assert.Empty(t, fx.nav.Paths())
	assert.Equal(t, 1, fx.notices.Count(notify.LevelError))
	assert.Equal(t, []string{metrics.ResultNoop}, fx.metrics.Counted(metrics.CheckoutSubmit))
}

func TestCheckout_TwoBillScenario(t *testing.T) {
	fx := newFixture(t)
	for _, b := range testutil.TwoUnpaidBills() {
		require.NoError(t, fx.cart.Add(b))
	}
	require.Equal(t, billing.Amount(225000), fx.cart.Total())

	fx.api.EXPECT().
		Checkout(gomock.Any(), []billing.ID{"11", "12"}, DefaultPaymentMethod).
		Return(billing.Transaction{ID: "501", TotalAmount: 225000, Status: billing.TransactionPending}, nil)

	clears := 0
	fx.cart.Subscribe(func(items []billing.Bill) {
		if len(items) == 0 {
			clears++
		}
	})

	tx, err := fx.flow.Checkout(context.Background())
	require.NoError(t, err)

	assert.Equal(t, billing.ID("501"), tx.ID)
	assert.Zero(t, fx.cart.Len())
	assert.Equal(t, 1, clears)
	assert.Equal(t, []string{"/user/payment/501"}, fx.nav.Paths())
	assert.Equal(t, []notify.Notice{notify.Success(msgCheckoutCreated)}, fx.notices.Notices())
	assert.Equal(t, []string{metrics.ResultSuccess}, fx.metrics.Counted(metrics.CheckoutSubmit))
	assert.False(t, fx.flow.Submitting())
}

func TestCheckout_FailureLeavesCartUntouched(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"backend message", apperrors.Server("Tagihan sudah dalam transaksi lain."), "Tagihan sudah dalam transaksi lain."},
		{"no message", &apperrors.AppError{Code: apperrors.ErrCodeServer, Status: http.StatusInternalServerError}, msgCheckoutFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			for _, b := range testutil.TwoUnpaidBills() {
				require.NoError(t, fx.cart.Add(b))
			}
			before := fx.cart.Items()

			fx.api.EXPECT().Checkout(gomock.Any(), gomock.Any(), gomock.Any()).Return(billing.Transaction{}, tt.err)

			_, err := fx.flow.Checkout(context.Background())
			require.Error(t, err)

			assert.Equal(t, before, fx.cart.Items())
			assert.Empty(t, fx.nav.Paths())
			assert.Equal(t, []notify.Notice{notify.Error(tt.want)}, fx.notices.Notices())
			assert.Equal(t, []string{metrics.ResultError}, fx.metrics.Counted(metrics.CheckoutSubmit))
		})
	}
}

func TestCheckout_CanceledStaysSilent(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.cart.Add(testutil.NewBill(1).Build()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fx.api.EXPECT().Checkout(gomock.Any(), gomock.Any(), gomock.Any()).Return(billing.Transaction{}, context.Canceled)

	_, err := fx.flow.Checkout(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fx.notices.Notices())
	assert.Equal(t, 1, fx.cart.Len())
}

func TestCheckout_SecondCallWhileInFlight(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.cart.Add(testutil.NewBill(1).Build()))

	started := make(chan struct{})
	release := make(chan struct{})
	fx.api.EXPECT().
		Checkout(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []billing.ID, string) (billing.Transaction, error) {
			close(started)
			<-release
			return billing.Transaction{ID: "9"}, nil
		}).
		Times(1)

	done := make(chan error, 1)
	go func() {
		_, err := fx.flow.Checkout(context.Background())
		done <- err
	}()

	<-started
	assert.True(t, fx.flow.Submitting())
	_, err := fx.flow.Checkout(context.Background())
	assert.True(t, apperrors.IsInFlight(err))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"/user/payment/9"}, fx.nav.Paths())
}

func TestConfirmPayment_Success(t *testing.T) {
	fx := newFixture(t)
	fx.api.EXPECT().ConfirmPayment(gomock.Any(), billing.ID("501")).Return("Pembayaran diterima.", nil)

	require.NoError(t, fx.flow.ConfirmPayment(context.Background(), "501"))

	assert.Equal(t, PaymentView{TransactionID: "501", Paid: true}, fx.flow.PaymentView("501"))
	assert.Equal(t, []notify.Notice{notify.Success("Pembayaran diterima.")}, fx.notices.Notices())
	require.Len(t, fx.scheduler.calls, 1)
	assert.Equal(t, DefaultConfirmRedirectDelay, fx.scheduler.calls[0].delay)
	assert.Equal(t, "/user/tagihan-saya", fx.scheduler.calls[0].path)
	assert.Equal(t, []string{metrics.ResultSuccess}, fx.metrics.Counted(metrics.PaymentConfirm))

	// Already paid: nothing else happens.
	require.NoError(t, fx.flow.ConfirmPayment(context.Background(), "501"))
	assert.Len(t, fx.scheduler.calls, 1)
}

func TestConfirmPayment_EmptyMessageUsesDefault(t *testing.T) {
	fx := newFixture(t)
	fx.api.EXPECT().ConfirmPayment(gomock.Any(), billing.ID("7")).Return("", nil)

	require.NoError(t, fx.flow.ConfirmPayment(context.Background(), "7"))
	assert.Equal(t, []notify.Notice{notify.Success(msgConfirmed)}, fx.notices.Notices())
}

func TestConfirmPayment_FailureAllowsRetry(t *testing.T) {
	fx := newFixture(t)
	gomock.InOrder(
		fx.api.EXPECT().ConfirmPayment(gomock.Any(), billing.ID("501")).
			Return("", &apperrors.AppError{Code: apperrors.ErrCodeServer, Status: http.StatusBadGateway}),
		fx.api.EXPECT().ConfirmPayment(gomock.Any(), billing.ID("501")).Return("OK", nil),
	)

	err := fx.flow.ConfirmPayment(context.Background(), "501")
	require.Error(t, err)
	assert.Equal(t, PaymentView{TransactionID: "501"}, fx.flow.PaymentView("501"))
	assert.Equal(t, []notify.Notice{notify.Error(msgConfirmFailed)}, fx.notices.Drain())
	assert.Empty(t, fx.scheduler.calls)

	require.NoError(t, fx.flow.ConfirmPayment(context.Background(), "501"))
	assert.True(t, fx.flow.PaymentView("501").Paid)
}

func TestConfirmPayment_RequiresID(t *testing.T) {
	fx := newFixture(t)
	err := fx.flow.ConfirmPayment(context.Background(), "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestConfirmPayment_InFlight(t *testing.T) {
	fx := newFixture(t)

	started := make(chan struct{})
	release := make(chan struct{})
	fx.api.EXPECT().
		ConfirmPayment(gomock.Any(), billing.ID("3")).
		DoAndReturn(func(context.Context, billing.ID) (string, error) {
			close(started)
			<-release
			return "OK", nil
		})

	done := make(chan error, 1)
	go func() { done <- fx.flow.ConfirmPayment(context.Background(), "3") }()

	<-started
	assert.True(t, fx.flow.PaymentView("3").Confirming)
	assert.True(t, apperrors.IsInFlight(fx.flow.ConfirmPayment(context.Background(), "3")))

	close(release)
	require.NoError(t, <-done)
}

func TestLeave_CancelsRedirect(t *testing.T) {
	fx := newFixture(t)
	fx.api.EXPECT().ConfirmPayment(gomock.Any(), gomock.Any()).Return("OK", nil)

	require.NoError(t, fx.flow.ConfirmPayment(context.Background(), "1"))
	fx.flow.Leave()
	fx.flow.Leave()

	require.Len(t, fx.scheduler.calls, 1)
	assert.True(t, fx.scheduler.calls[0].cancelled)
}

func TestLeave_ForgetsPaymentView(t *testing.T) {
	fx := newFixture(t)
	fx.api.EXPECT().ConfirmPayment(gomock.Any(), gomock.Any()).Return("OK", nil).Times(2)

	require.NoError(t, fx.flow.ConfirmPayment(context.Background(), "1"))
	require.NoError(t, fx.flow.ConfirmPayment(context.Background(), "2"))
	assert.False(t, fx.flow.PaymentView("1").Paid, "only the latest transaction is kept")
	assert.True(t, fx.flow.PaymentView("2").Paid)

	fx.flow.Leave()
	assert.Equal(t, PaymentView{TransactionID: "2"}, fx.flow.PaymentView("2"))
	assert.Nil(t, fx.flow.view)
}

func TestBillAction(t *testing.T) {
	plain := testutil.NewBill(1).Build()
	pending := testutil.NewBill(2).WithPendingTransaction("88").Build()

	assert.Equal(t, Action{Kind: AddToCart, Bill: plain}, BillAction(plain))
	got := BillAction(pending)
	assert.Equal(t, ResumePayment, got.Kind)
	assert.Equal(t, billing.ID("88"), got.TransactionID)
	assert.Equal(t, "resume_payment", got.Kind.String())
}

func TestApply(t *testing.T) {
	fx := newFixture(t)
	plain := testutil.NewBill(1).Build()
	pending := testutil.NewBill(2).WithPendingTransaction("88").Build()

	require.NoError(t, fx.flow.Apply(BillAction(plain)))
	assert.True(t, apperrors.IsDuplicateCartItem(fx.flow.Apply(BillAction(plain))))
	require.NoError(t, fx.flow.Apply(BillAction(pending)))

	assert.Equal(t, []billing.ID{"1"}, fx.cart.IDs())
	assert.Equal(t, []string{"/user/payment/88"}, fx.nav.Paths())
}
