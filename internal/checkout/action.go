package checkout

import (
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/nav"
)

// ActionKind is the affordance offered for an unpaid bill.
type ActionKind int

const (
	// AddToCart selects the bill for the next checkout.
	AddToCart ActionKind = iota
	// ResumePayment reopens the confirmation screen of a pending transaction.
	ResumePayment
)

func (k ActionKind) String() string {
	if k == ResumePayment {
		return "resume_payment"
	}
	return "add_to_cart"
}

// Action is what selecting a bill does.
type Action struct {
	Kind          ActionKind
	Bill          billing.Bill
	TransactionID billing.ID
}

// BillAction picks the affordance for bill. Bills already attached to a
// pending transaction cannot be added to the cart again.
func BillAction(bill billing.Bill) Action {
	if bill.HasPendingTransaction() {
		return Action{Kind: ResumePayment, Bill: bill, TransactionID: bill.PendingTransactionID}
	}
	return Action{Kind: AddToCart, Bill: bill}
}

// Apply performs a. Adding a bill that is already selected returns the
// cart's duplicate error.
func (f *Flow) Apply(a Action) error {
	switch a.Kind {
	case ResumePayment:
		f.navigator.Navigate(nav.PaymentPath(a.TransactionID.String()))
		return nil
	default:
		return f.cart.Add(a.Bill)
	}
}
