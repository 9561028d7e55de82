package ports

import (
	"context"
	"time"

	"github.com/kramabill/billing-krama/internal/domain/billing"
)

// PaymentAPI creates and confirms transactions.
type PaymentAPI interface {
	Checkout(ctx context.Context, billIDs []billing.ID, paymentMethod string) (billing.Transaction, error)
	ConfirmPayment(ctx context.Context, transactionID billing.ID) (string, error)
}

// BillLister loads the bills a resident can act on.
type BillLister interface {
	MyUnpaidBills(ctx context.Context) ([]billing.Bill, error)
	KramaUnpaidBills(ctx context.Context, kramaID billing.ID) ([]billing.Bill, error)
}

// Navigator moves the UI between screens identified by paths.
type Navigator interface {
	Navigate(path string)
	Current() string
}

// Scheduler performs a navigation later unless cancelled or the screen changed.
type Scheduler interface {
	After(delay time.Duration, path string) (cancel func())
}
