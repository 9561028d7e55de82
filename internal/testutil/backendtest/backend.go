// Package backendtest provides an in-process fake of the billing backend for
// end-to-end tests of the client. It serves the same routes under /api that
// the real service exposes and keeps accounts, bills and transactions in
// memory so tests can drive login, checkout and payment without a network.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/testutil"
)

// APIPrefix is the path under which all backend routes are mounted.
const APIPrefix = "/api"

type account struct {
	user     domainauth.User
	password string
	kramaID  billing.ID
}

type failure struct {
	status int
	body   string
}

// Backend is a fake billing backend bound to an httptest.Server.
//
//nolint:govet // field grouping follows the routes rather than alignment.
type Backend struct {
	t      testutil.TestingTB
	server *httptest.Server

	mu           sync.Mutex
	accounts     map[string]*account
	tokens       map[string]string
	krama        map[billing.ID]billing.Krama
	bills        map[billing.ID]*billing.Bill
	transactions map[billing.ID]*billing.Transaction
	txOwner      map[billing.ID]string
	failures     map[string][]failure
	requests     []string
	nextUserID   int64
	nextTxID     int
}

// New starts a fake backend. The server is closed when the test ends.
func New(t testutil.TestingTB) *Backend {
	t.Helper()

	b := &Backend{
		t:            t,
		accounts:     make(map[string]*account),
		tokens:       make(map[string]string),
		krama:        make(map[billing.ID]billing.Krama),
		bills:        make(map[billing.ID]*billing.Bill),
		transactions: make(map[billing.ID]*billing.Transaction),
		txOwner:      make(map[billing.ID]string),
		failures:     make(map[string][]failure),
		nextTxID:     500,
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the API base URL clients should be configured with.
func (b *Backend) URL() string { return b.server.URL + APIPrefix }

// Client returns the server's HTTP client.
func (b *Backend) Client() *http.Client { return b.server.Client() }

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Use(b.injectFailures)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/login", b.handleLogin)
		r.Post("/register", b.handleRegister)
		r.Get("/banjar-list-public", b.handleBanjarList)

		r.Group(func(r chi.Router) {
			r.Use(b.authenticate)
			r.Get("/profile", b.handleProfile)
			r.Post("/logout", b.handleLogout)

			r.Get("/user/my-unpaid-bills", b.handleMyUnpaidBills)
			r.Get("/user/search-krama", b.handleSearchKrama)
			r.Get("/user/krama/{krama_id}/unpaid-bills", b.handleKramaUnpaidBills)
			r.Post("/user/checkout", b.handleCheckout)
			r.Post("/user/confirm-payment", b.handleConfirmPayment)
			r.Get("/user/my-transactions", b.handleMyTransactions)
			r.Get("/user/my-profile", b.handleMyProfile)
			r.Put("/user/my-profile", b.handleUpdateMyProfile)
			r.Get("/user/dashboard-stats", b.handleUserStats)

			r.Get("/admin/dashboard-stats", b.handleAdminStats)
			r.Get("/admin/dashboard-chart", b.handleAdminChart)
			r.Get("/admin/krama", b.handleListKrama)
			r.Get("/admin/krama-list", b.handleKramaOptions)
			r.Get("/admin/krama/{krama_id}", b.handleGetKrama)
			r.Put("/admin/krama/{krama_id}", b.handleUpdateKrama)
			r.Delete("/admin/krama/{krama_id}", b.handleDeleteKrama)
			r.Post("/krama", b.handleCreateKrama)
			r.Get("/krama/{krama_id}/history", b.handleKramaHistory)
			r.Post("/admin/tagihan", b.handleCreateTagihan)
			r.Get("/admin/tagihan", b.handleListTagihan)
			r.Post("/admin/pembayaran", b.handleValidatePayment)
			r.Get("/admin/export-to-sheet", b.handleExportToSheet)
			r.Get("/admin/banjar-list", b.handleBanjarList)
		})
	})
	return r
}

// AddResident registers a resident account linked to krama and returns the
// resulting user.
func (b *Backend) AddResident(email, password string, krama billing.Krama) domainauth.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if krama.Email == "" {
		krama.Email = email
	}
	b.krama[krama.ID] = krama
	return b.addAccountLocked(email, password, krama.Name, domainauth.RoleResident, krama.ID)
}

// AddAdmin registers an administrator account.
func (b *Backend) AddAdmin(email, password, name string) domainauth.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addAccountLocked(email, password, name, domainauth.RoleAdmin, "")
}

func (b *Backend) addAccountLocked(email, password, name string, role domainauth.Role, kramaID billing.ID) domainauth.User {
	b.nextUserID++
	user := domainauth.User{ID: b.nextUserID, Name: name, Email: email, Role: role}
	b.accounts[strings.ToLower(email)] = &account{user: user, password: password, kramaID: kramaID}
	return user
}

// AddBills stores unpaid bills. Each bill must carry its owning Krama.
func (b *Backend) AddBills(bills ...billing.Bill) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bill := range bills {
		if bill.Krama == nil {
			b.t.Fatalf("backendtest: bill %s has no krama", bill.ID)
			return
		}
		if _, ok := b.krama[bill.Krama.ID]; !ok {
			b.krama[bill.Krama.ID] = *bill.Krama
		}
		if bill.PaymentStatus == "" {
			bill.PaymentStatus = billing.PaymentUnpaid
		}
		stored := bill
		b.bills[bill.ID] = &stored
	}
}

// IssueToken signs email in without a login request, as if a token had been
// persisted by an earlier run.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[strings.ToLower(email)]; !ok {
		b.t.Fatalf("backendtest: unknown account %s", email)
		return ""
	}
	token := uuid.NewString()
	b.tokens[token] = strings.ToLower(email)
	return token
}

// ExpireSessions revokes every issued token.
func (b *Backend) ExpireSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.tokens)
}

// FailNext makes the next request to method+path answer with status and
// body instead of reaching its handler. Path is relative to the API prefix.
func (b *Backend) FailNext(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + APIPrefix + path
	b.failures[key] = append(b.failures[key], failure{status: status, body: body})
}

// Requests returns "METHOD /api/path" for every request served so far.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// Count reports how many requests hit method+path (relative to the prefix).
func (b *Backend) Count(method, path string) int {
	key := method + " " + APIPrefix + path
	n := 0
	for _, r := range b.Requests() {
		if r == key {
			n++
		}
	}
	return n
}

// Transaction returns a stored transaction.
func (b *Backend) Transaction(id billing.ID) (billing.Transaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.transactions[id]
	if !ok {
		return billing.Transaction{}, false
	}
	return *tx, true
}

// Bill returns a stored bill.
func (b *Backend) Bill(id billing.ID) (billing.Bill, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bill, ok := b.bills[id]
	if !ok {
		return billing.Bill{}, false
	}
	return *bill, true
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		queue := b.failures[key]
		var f *failure
		if len(queue) > 0 {
			f = &queue[0]
			b.failures[key] = queue[1:]
		}
		b.mu.Unlock()

		if f == nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	})
}

type ctxKey struct{}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		email, known := b.tokens[token]
		var acc *account
		if ok && known {
			acc = b.accounts[email]
		}
		b.mu.Unlock()

		if acc == nil {
			writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acc, token)))
	})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domainauth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}

	b.mu.Lock()
	acc, ok := b.accounts[strings.ToLower(creds.Email)]
	if !ok || acc.password != creds.Password {
		b.mu.Unlock()
		writeMessage(w, http.StatusUnauthorized, "Email atau password salah.")
		return
	}
	token := uuid.NewString()
	b.tokens[token] = strings.ToLower(creds.Email)
	user := acc.user
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in billing.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}

	b.mu.Lock()
	if _, exists := b.accounts[strings.ToLower(in.Email)]; exists {
		b.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Data tidak valid.",
			"errors":  map[string][]string{"email": {"Email sudah digunakan."}},
		})
		return
	}
	kramaID := b.nextKramaIDLocked()
	bj, _ := banjarByID(in.BanjarID)
	b.krama[kramaID] = billing.Krama{
		ID: kramaID, NIK: in.NIK, Name: in.Name, Gender: in.Gender, Status: in.Status, Email: in.Email, Banjar: bj,
	}
	user := b.addAccountLocked(in.Email, in.Password, in.Name, domainauth.RoleResident, kramaID)
	token := uuid.NewString()
	b.tokens[token] = strings.ToLower(in.Email)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": user})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFrom(r.Context())
	writeJSON(w, http.StatusOK, acc.user)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, token := accountFrom(r.Context())
	b.mu.Lock()
	delete(b.tokens, token)
	b.mu.Unlock()
	writeMessage(w, http.StatusOK, "Logout berhasil.")
}

var banjars = []billing.Banjar{
	{ID: "1", Name: "Banjar Kaja"},
	{ID: "2", Name: "Banjar Kelod"},
}

func banjarByID(id billing.ID) (*billing.Banjar, bool) {
	for _, bj := range banjars {
		if bj.ID == id {
			out := bj
			return &out, true
		}
	}
	return nil, false
}

func (b *Backend) handleBanjarList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, banjars)
}

func (b *Backend) handleMyUnpaidBills(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"data": b.unpaidBillsOf(acc.kramaID)})
}

func (b *Backend) handleKramaUnpaidBills(w http.ResponseWriter, r *http.Request) {
	id := billing.ID(chi.URLParam(r, "krama_id"))
	b.mu.Lock()
	_, ok := b.krama[id]
	b.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Krama tidak ditemukan.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": b.unpaidBillsOf(id)})
}

func (b *Backend) unpaidBillsOf(kramaID billing.ID) []billing.Bill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]billing.Bill, 0)
	for _, bill := range b.bills {
		if bill.Krama != nil && bill.Krama.ID == kramaID && !bill.IsPaid() {
			out = append(out, *bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) handleSearchKrama(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	b.mu.Lock()
	out := make([]billing.Krama, 0)
	for _, k := range b.krama {
		if strings.Contains(strings.ToLower(k.Name), q) || strings.Contains(k.NIK, q) {
			out = append(out, k)
		}
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

type checkoutBody struct {
	BillIDs       []billing.ID `json:"tagihan_ids"`
	PaymentMethod string       `json:"payment_method"`
}

func (b *Backend) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var in checkoutBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}
	if len(in.BillIDs) == 0 {
		writeMessage(w, http.StatusUnprocessableEntity, "Pilih minimal satu tagihan.")
		return
	}

	acc, _ := accountFrom(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()

	var total billing.Amount
	details := make([]billing.TransactionDetail, 0, len(in.BillIDs))
	for _, id := range in.BillIDs {
		bill, ok := b.bills[id]
		if !ok {
			writeMessage(w, http.StatusNotFound, "Tagihan tidak ditemukan.")
			return
		}
		if bill.IsPaid() {
			writeMessage(w, http.StatusConflict, "Tagihan sudah dibayar.")
			return
		}
		total += bill.Total
		details = append(details, billing.TransactionDetail{
			ID:     billing.ID(strconv.Itoa(len(details) + 1)),
			Bill:   &billing.Bill{ID: id, Total: bill.Total},
			Amount: bill.Total,
		})
	}

	b.nextTxID++
	txID := billing.ID(strconv.Itoa(b.nextTxID))
	for _, id := range in.BillIDs {
		b.bills[id].PendingTransactionID = txID
	}
	tx := &billing.Transaction{
		ID:            txID,
		TotalAmount:   total,
		Status:        billing.TransactionPending,
		PaymentMethod: in.PaymentMethod,
		Details:       details,
	}
	b.transactions[txID] = tx
	b.txOwner[txID] = acc.user.Email

	writeJSON(w, http.StatusCreated, billing.Transaction{ID: tx.ID, TotalAmount: tx.TotalAmount})
}

func (b *Backend) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TransactionID billing.ID `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, ok := b.transactions[in.TransactionID]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Transaksi tidak ditemukan.")
		return
	}
	if tx.Status == billing.TransactionPaid {
		writeMessage(w, http.StatusConflict, "Transaksi sudah dibayar.")
		return
	}
	tx.Status = billing.TransactionPaid
	for _, d := range tx.Details {
		if d.Bill == nil {
			continue
		}
		if bill, ok := b.bills[d.Bill.ID]; ok {
			bill.PaymentStatus = billing.PaymentPaid
			bill.PendingTransactionID = ""
		}
	}
	writeMessage(w, http.StatusOK, "Pembayaran berhasil dikonfirmasi.")
}

func (b *Backend) handleMyTransactions(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFrom(r.Context())
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	b.mu.Lock()
	out := make([]billing.Transaction, 0)
	for id, tx := range b.transactions {
		if b.txOwner[id] == acc.user.Email {
			out = append(out, *tx)
		}
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	const perPage = 10
	lastPage := max(1, (len(out)+perPage-1)/perPage)
	start := min(len(out), (page-1)*perPage)
	end := min(len(out), start+perPage)

	writeJSON(w, http.StatusOK, billing.TransactionPage{
		Transactions: out[start:end],
		Meta:         billing.PageMeta{CurrentPage: page, LastPage: lastPage, PerPage: perPage, Total: len(out)},
	})
}

func (b *Backend) handleMyProfile(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFrom(r.Context())
	b.mu.Lock()
	k, ok := b.krama[acc.kramaID]
	b.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Profil krama tidak ditemukan.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": k})
}

func (b *Backend) handleUserStats(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFrom(r.Context())
	unpaid := b.unpaidBillsOf(acc.kramaID)
	var due billing.Amount
	for _, bill := range unpaid {
		due += bill.Total
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tagihan_belum_bayar": len(unpaid),
		"total_tunggakan":     int64(due),
	})
}

func (b *Backend) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_krama":   len(b.krama),
		"total_tagihan": len(b.bills),
	})
}

func (b *Backend) handleListKrama(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	b.mu.Lock()
	out := make([]billing.Krama, 0, len(b.krama))
	for _, k := range b.krama {
		out = append(out, k)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	acc, _ := accountFrom(r.Context())
	if acc.user.Role != domainauth.RoleAdmin {
		writeMessage(w, http.StatusForbidden, "Akses ditolak.")
		return false
	}
	return true
}
