// Package billing holds the resident billing vocabulary shared by the API
// client, the cart and the checkout flow: krama (residents), banjar (wards),
// tagihan (bills) and transactions.
package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID is a backend identifier. The backend may send numbers or strings; both
// decode into the same textual form so IDs can be used in paths and map keys.
type ID string

// UnmarshalJSON accepts JSON numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integral IDs as numbers, everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool { return id == "" }

// Amount is a rupiah amount. Rupiah has no minor unit in practice, so the
// value is whole rupiah; decimal strings such as "150000.00" are rounded.
type Amount int64

// UnmarshalJSON accepts numbers, numeric strings and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", raw, err)
	}
	*a = Amount(math.Round(f))
	return nil
}

// Rupiah formats the amount the way the original screens did ("Rp 225.000").
func (a Amount) Rupiah() string {
	n := int64(a)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "Rp " + b.String()
}

// Banjar is a ward grouping used to categorise residents.
type Banjar struct {
	ID   ID     `json:"banjar_id"`
	Name string `json:"nama_banjar"`
}

// Krama is a registered resident subject to billing.
type Krama struct {
	ID     ID      `json:"krama_id"`
	NIK    string  `json:"nik"`
	Name   string  `json:"name"`
	Gender string  `json:"gender,omitempty"`
	Status string  `json:"status,omitempty"`
	Email  string  `json:"email,omitempty"`
	Banjar *Banjar `json:"banjar,omitempty"`
}

// BanjarName returns the ward name or "N/A".
func (k Krama) BanjarName() string {
	if k.Banjar == nil || k.Banjar.Name == "" {
		return "N/A"
	}
	return k.Banjar.Name
}

// PaymentStatus is the backend's per-bill payment flag.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "belum_bayar"
	PaymentPaid   PaymentStatus = "lunas"
)

// Bill (tagihan) is one billing-period charge for a resident. Total is
// computed by the backend as iuran + dedosan + peturuhan.
type Bill struct {
	ID                   ID            `json:"tagihan_id"`
	Krama                *Krama        `json:"krama,omitempty"`
	Period               string        `json:"tanggal"`
	Dues                 Amount        `json:"iuran"`
	Dedosan              Amount        `json:"dedosan"`
	Peturuhan            Amount        `json:"peturuhan"`
	Total                Amount        `json:"total_tagihan"`
	PaymentStatus        PaymentStatus `json:"status_pembayaran,omitempty"`
	PendingTransactionID ID            `json:"pending_transaction_id,omitempty"`
}

// OwnerName returns the display name of the resident that owns the bill.
func (b Bill) OwnerName() string {
	if b.Krama == nil || b.Krama.Name == "" {
		return "N/A"
	}
	return b.Krama.Name
}

// HasPendingTransaction reports whether the bill is already attached to an
// unfinished transaction and must not be checked out again.
func (b Bill) HasPendingTransaction() bool { return !b.PendingTransactionID.IsZero() }

// IsPaid reports whether the backend marks the bill as settled.
func (b Bill) IsPaid() bool {
	return b.PaymentStatus != "" && b.PaymentStatus != PaymentUnpaid
}

// TransactionStatus is the server-owned state of a transaction.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionPaid    TransactionStatus = "paid"
	TransactionFailed  TransactionStatus = "failed"
)

// IsTerminal reports whether no further status change is expected.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionPaid || s == TransactionFailed
}

func (s TransactionStatus) String() string { return string(s) }

// TransactionDetail links a bill into a transaction.
type TransactionDetail struct {
	ID     ID     `json:"transaction_detail_id"`
	Bill   *Bill  `json:"tagihan,omitempty"`
	Amount Amount `json:"amount"`
}

// Transaction is a server-side aggregate of bills submitted together.
type Transaction struct {
	ID            ID                  `json:"transaction_id"`
	TotalAmount   Amount              `json:"total_amount"`
	Status        TransactionStatus   `json:"status,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	CreatedAt     string              `json:"created_at,omitempty"`
	Details       []TransactionDetail `json:"details,omitempty"`
}

// PageMeta is the pagination block returned by list endpoints.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// HasNext reports whether another page exists after the current one.
func (m PageMeta) HasNext() bool { return m.CurrentPage < m.LastPage }

// TransactionPage is one page of payment history.
type TransactionPage struct {
	Transactions []Transaction `json:"data"`
	Meta         PageMeta      `json:"meta"`
}

// BillPage is one page of the admin report listing.
type BillPage struct {
	Bills []Bill   `json:"data"`
	Meta  PageMeta `json:"meta"`
}

// Stats is an opaque dashboard statistics document.
type Stats map[string]any

// Chart is the admin dashboard bar chart series.
type Chart struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// KramaHistory is a resident with their billing history.
type KramaHistory struct {
	Krama   Krama  `json:"krama"`
	History []Bill `json:"history"`
}

// SheetExport is the result of a spreadsheet export request.
type SheetExport struct {
	Message        string `json:"message"`
	SpreadsheetURL string `json:"spreadsheet_url,omitempty"`
}
