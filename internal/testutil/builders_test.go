package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kramabill/billing-krama/internal/domain/billing"
)

func TestBillBuilder(t *testing.T) {
	bill := NewBill(3).WithOwner("Ketut").WithComponents(10000, 2000, 500).WithPendingTransaction("77").Build()

	assert.Equal(t, billing.ID("3"), bill.ID)
	assert.Equal(t, "Ketut", bill.OwnerName())
	assert.Equal(t, billing.Amount(12500), bill.Total)
	assert.True(t, bill.HasPendingTransaction())
	assert.False(t, bill.IsPaid())
	assert.True(t, NewBill(4).Paid().Build().IsPaid())
}

func TestBillBuilder_WithOwnerDoesNotAlias(t *testing.T) {
	b := NewBill(1)
	first := b.Build()
	second := b.WithOwner("Wayan").Build()

	assert.Equal(t, "Made Resident", first.OwnerName())
	assert.Equal(t, "Wayan", second.OwnerName())
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder
	r.Count("cart.add", 1, map[string]string{"result": "success"})
	r.Timing("cart.add.duration", 5*time.Millisecond, nil)
	r.Count("cart.add", 1, map[string]string{"result": "noop"})

	assert.Equal(t, []string{"success", "noop"}, r.Counted("cart.add"))
	assert.Len(t, r.Calls(), 3)
}
