// Package checkout turns the cart into a transaction and confirms payment
// for it.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kramabill/billing-krama/internal/cart"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/nav"
	"github.com/kramabill/billing-krama/internal/notify"
	"github.com/kramabill/billing-krama/internal/observability/metrics"
	"github.com/kramabill/billing-krama/internal/observability/statsd"
	"github.com/kramabill/billing-krama/internal/ports"
)

// Defaults used when Options leaves them unset.
const (
	DefaultPaymentMethod        = "QRIS"
	DefaultConfirmRedirectDelay = 3 * time.Second
)

const (
	msgCheckoutCreated = "Faktur berhasil dibuat. Mengarahkan ke pembayaran..."
	msgCheckoutFailed  = "Gagal membuat checkout."
	msgConfirmed       = "Pembayaran berhasil dikonfirmasi."
	msgConfirmFailed   = "Gagal konfirmasi pembayaran."
)

// Options configures a Flow.
type Options struct {
	Payments  ports.PaymentAPI
	Cart      *cart.Store
	Navigator ports.Navigator
	Scheduler ports.Scheduler
	Notices   notify.Sink
	Logger    *slog.Logger
	Metrics   statsd.Sink

	PaymentMethod        string
	ConfirmRedirectDelay time.Duration
}

// PaymentView is the confirmation screen state for one transaction.
type PaymentView struct {
	TransactionID billing.ID
	Confirming    bool
	Paid          bool
}

// Flow drives checkout and payment confirmation.
type Flow struct {
	payments  ports.PaymentAPI
	cart      *cart.Store
	navigator ports.Navigator
	scheduler ports.Scheduler
	notices   notify.Sink
	logger    *slog.Logger
	metrics   statsd.Sink
	method    string
	delay     time.Duration

	submitting atomic.Bool

	mu sync.Mutex
	// view is the confirmation screen showing; only one exists at a time.
	view     *PaymentView
	redirect func()
}

// New builds a Flow. Payments, Cart and Navigator are required.
func New(opts Options) (*Flow, error) {
	if opts.Payments == nil || opts.Cart == nil || opts.Navigator == nil {
		return nil, errors.New("checkout: payments, cart and navigator are required")
	}
	f := &Flow{
		payments:  opts.Payments,
		cart:      opts.Cart,
		navigator: opts.Navigator,
		scheduler: opts.Scheduler,
		notices:   opts.Notices,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		method:    opts.PaymentMethod,
		delay:     opts.ConfirmRedirectDelay,
	}
	if f.notices == nil {
		f.notices = notify.Discard
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "checkout")
	if f.method == "" {
		f.method = DefaultPaymentMethod
	}
	if f.delay <= 0 {
		f.delay = DefaultConfirmRedirectDelay
	}
	return f, nil
}

// Checkout submits every bill in the cart as one transaction. On success the
// cart is cleared and the confirmation screen opened; on failure the cart is
// left as it was.
func (f *Flow) Checkout(ctx context.Context) (billing.Transaction, error) {
	if f.cart.Len() == 0 {
		err := apperrors.EmptyCart()
		f.notices.Notify(notify.Error(err.Message))
		metrics.Emit(f.metrics, metrics.FlowMetric{Name: metrics.CheckoutSubmit, Result: metrics.ResultNoop})
		return billing.Transaction{}, err
	}
	if !f.submitting.CompareAndSwap(false, true) {
		return billing.Transaction{}, apperrors.InFlight("checkout")
	}
	defer f.submitting.Store(false)

	ids := f.cart.IDs()
	start := time.Now()
	tx, err := f.payments.Checkout(ctx, ids, f.method)
	metrics.Emit(f.metrics, metrics.FlowMetric{Name: metrics.CheckoutSubmit, Duration: time.Since(start), Err: err})
	if err != nil {
		f.logger.Warn("checkout failed", "bills", len(ids), "error", err)
		f.report(ctx, err, msgCheckoutFailed)
		return billing.Transaction{}, err
	}

	f.logger.Info("checkout created", "transaction_id", tx.ID.String(), "bills", len(ids), "total", int64(tx.TotalAmount))
	f.cart.Clear()
	f.notices.Notify(notify.Success(msgCheckoutCreated))
	f.navigator.Navigate(nav.PaymentPath(tx.ID.String()))
	return tx, nil
}

// Submitting reports whether a checkout request is running.
func (f *Flow) Submitting() bool { return f.submitting.Load() }

// ConfirmPayment tells the backend the transaction has been paid. Success
// marks the view paid and returns to the bill list after the redirect
// delay; failure leaves the view ready for another attempt.
func (f *Flow) ConfirmPayment(ctx context.Context, txID billing.ID) error {
	if txID.IsZero() {
		return apperrors.ValidationField("transaction_id", "ID transaksi wajib diisi.")
	}

	f.mu.Lock()
	view := f.viewLocked(txID)
	switch {
	case view.Paid:
		f.mu.Unlock()
		return nil
	case view.Confirming:
		f.mu.Unlock()
		return apperrors.InFlight("konfirmasi pembayaran")
	}
	view.Confirming = true
	f.mu.Unlock()

	start := time.Now()
	msg, err := f.payments.ConfirmPayment(ctx, txID)
	metrics.Emit(f.metrics, metrics.FlowMetric{Name: metrics.PaymentConfirm, Duration: time.Since(start), Err: err})

	f.mu.Lock()
	view.Confirming = false
	if err != nil {
		f.mu.Unlock()
		f.logger.Warn("payment confirmation failed", "transaction_id", txID.String(), "error", err)
		f.report(ctx, err, msgConfirmFailed)
		return err
	}
	view.Paid = true
	if f.redirect != nil {
		f.redirect()
		f.redirect = nil
	}
	if f.scheduler != nil {
		f.redirect = f.scheduler.After(f.delay, nav.PathMyBills)
	}
	f.mu.Unlock()

	if msg == "" {
		msg = msgConfirmed
	}
	f.logger.Info("payment confirmed", "transaction_id", txID.String())
	f.notices.Notify(notify.Success(msg))
	return nil
}

// PaymentView returns the confirmation state of a transaction.
func (f *Flow) PaymentView(txID billing.ID) PaymentView {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view != nil && f.view.TransactionID == txID {
		return *f.view
	}
	return PaymentView{TransactionID: txID}
}

// Leave is called when the confirmation screen goes away; it cancels a
// pending redirect and forgets the screen state.
func (f *Flow) Leave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redirect != nil {
		f.redirect()
		f.redirect = nil
	}
	f.view = nil
}

// viewLocked returns the view for txID, replacing the view of any other
// transaction.
func (f *Flow) viewLocked(txID billing.ID) *PaymentView {
	if f.view == nil || f.view.TransactionID != txID {
		f.view = &PaymentView{TransactionID: txID}
	}
	return f.view
}

// report surfaces a failure as a notice. Cancelled calls stay silent.
func (f *Flow) report(ctx context.Context, err error, fallback string) {
	if ctx.Err() != nil || apperrors.GetCode(err) == apperrors.ErrCodeCanceled {
		return
	}
	f.notices.Notify(notify.Error(apperrors.UserMessage(err, fallback)))
}
