package testutil

import (
	"strconv"

	"github.com/kramabill/billing-krama/internal/domain/billing"
)

// BillBuilder provides a fluent interface for building bills in tests.
type BillBuilder struct {
	bill billing.Bill
}

// NewBill creates a builder for an unpaid bill owned by a default resident.
func NewBill(id int) *BillBuilder {
	return &BillBuilder{
		bill: billing.Bill{
			ID:            billing.ID(strconv.Itoa(id)),
			Krama:         &billing.Krama{ID: "1", Name: "Made Resident", NIK: "5108010101900001"},
			Period:        "2024-01-01",
			Dues:          50000,
			Total:         50000,
			PaymentStatus: billing.PaymentUnpaid,
		},
	}
}

// WithOwner sets the resident name.
func (b *BillBuilder) WithOwner(name string) *BillBuilder {
	k := *b.bill.Krama
	k.Name = name
	b.bill.Krama = &k
	return b
}

// WithPeriod sets the billing date.
func (b *BillBuilder) WithPeriod(period string) *BillBuilder {
	b.bill.Period = period
	return b
}

// WithTotal sets the total and puts all of it on the dues component.
func (b *BillBuilder) WithTotal(total billing.Amount) *BillBuilder {
	b.bill.Dues = total
	b.bill.Dedosan = 0
	b.bill.Peturuhan = 0
	b.bill.Total = total
	return b
}

// WithComponents sets the three charges and derives the total.
func (b *BillBuilder) WithComponents(dues, dedosan, peturuhan billing.Amount) *BillBuilder {
	b.bill.Dues = dues
	b.bill.Dedosan = dedosan
	b.bill.Peturuhan = peturuhan
	b.bill.Total = dues + dedosan + peturuhan
	return b
}

// WithPendingTransaction attaches the bill to an unfinished transaction.
func (b *BillBuilder) WithPendingTransaction(txID string) *BillBuilder {
	b.bill.PendingTransactionID = billing.ID(txID)
	return b
}

// Paid marks the bill as settled.
func (b *BillBuilder) Paid() *BillBuilder {
	b.bill.PaymentStatus = billing.PaymentPaid
	return b
}

// Build returns the bill.
func (b *BillBuilder) Build() billing.Bill {
	return b.bill
}

// TwoUnpaidBills returns the 150000 + 75000 pair used by checkout scenarios.
func TwoUnpaidBills() []billing.Bill {
	return []billing.Bill{
		NewBill(11).WithTotal(150000).Build(),
		NewBill(12).WithTotal(75000).WithPeriod("2024-02-01").Build(),
	}
}
