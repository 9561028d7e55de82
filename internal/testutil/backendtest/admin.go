package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
)

// SheetURL is the spreadsheet link returned by the export endpoint.
const SheetURL = "https://docs.google.com/spreadsheets/d/billing-krama-test"

const reportPerPage = 10

type residentFields struct {
	NIK      string
	Name     string
	BanjarID billing.ID
	Email    string
}

func writeInvalid(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "Data tidak valid.",
		"errors":  fields,
	})
}

// validateResidentLocked checks a resident form. self is the krama being
// edited and owner the account that may keep its own email.
func (b *Backend) validateResidentLocked(in residentFields, self billing.ID, owner *account) map[string][]string {
	fields := make(map[string][]string)
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = []string{"Nama wajib diisi."}
	}
	if strings.TrimSpace(in.NIK) == "" {
		fields["nik"] = []string{"NIK wajib diisi."}
	}
	if _, ok := banjarByID(in.BanjarID); !ok {
		fields["banjar_id"] = []string{"Banjar tidak valid."}
	}
	for id, k := range b.krama {
		if id != self && in.NIK != "" && k.NIK == in.NIK {
			fields["nik"] = []string{"NIK sudah terdaftar."}
		}
	}
	if in.Email != "" {
		if acc, ok := b.accounts[strings.ToLower(in.Email)]; ok && acc != owner {
			fields["email"] = []string{"Email sudah digunakan."}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (b *Backend) nextKramaIDLocked() billing.ID {
	for n := len(b.krama) + 1; ; n++ {
		id := billing.ID("k-" + strconv.Itoa(n))
		if _, taken := b.krama[id]; !taken {
			return id
		}
	}
}

func (b *Backend) nextBillIDLocked() billing.ID {
	n := 0
	for id := range b.bills {
		if v, err := strconv.Atoi(id.String()); err == nil && v > n {
			n = v
		}
	}
	for {
		n++
		id := billing.ID(strconv.Itoa(n))
		if _, taken := b.bills[id]; !taken {
			return id
		}
	}
}

// renameAccountLocked moves acc to a new email and keeps its tokens valid.
func (b *Backend) renameAccountLocked(acc *account, email string) {
	oldKey, newKey := strings.ToLower(acc.user.Email), strings.ToLower(email)
	if oldKey == newKey {
		acc.user.Email = email
		return
	}
	delete(b.accounts, oldKey)
	acc.user.Email = email
	b.accounts[newKey] = acc
	for token, owner := range b.tokens {
		if owner == oldKey {
			b.tokens[token] = newKey
		}
	}
	for tx, owner := range b.txOwner {
		if strings.EqualFold(owner, oldKey) {
			b.txOwner[tx] = email
		}
	}
}

func (b *Backend) accountOfKramaLocked(id billing.ID) *account {
	for _, acc := range b.accounts {
		if acc.kramaID == id {
			return acc
		}
	}
	return nil
}

func (b *Backend) handleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var in billing.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}
	acc, _ := accountFrom(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()

	k, ok := b.krama[acc.kramaID]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Profil krama tidak ditemukan.")
		return
	}
	fields := b.validateResidentLocked(residentFields{
		NIK: in.NIK, Name: in.Name, BanjarID: in.BanjarID, Email: in.Email,
	}, k.ID, acc)
	if strings.TrimSpace(in.Email) == "" {
		if fields == nil {
			fields = make(map[string][]string)
		}
		fields["email"] = []string{"Email wajib diisi."}
	}
	if fields != nil {
		writeInvalid(w, fields)
		return
	}

	k.NIK, k.Name, k.Gender, k.Status, k.Email = in.NIK, in.Name, in.Gender, in.Status, in.Email
	k.Banjar, _ = banjarByID(in.BanjarID)
	b.krama[k.ID] = k
	b.renameAccountLocked(acc, in.Email)
	acc.user.Name = in.Name
	if in.Password != "" {
		acc.password = in.Password
	}
	writeJSON(w, http.StatusOK, acc.user)
}

func (b *Backend) handleAdminChart(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	b.mu.Lock()
	sums := make(map[string]billing.Amount)
	for _, bill := range b.bills {
		if bill.IsPaid() && len(bill.Period) >= 7 {
			sums[bill.Period[:7]] += bill.Total
		}
	}
	b.mu.Unlock()

	chart := billing.Chart{Labels: make([]string, 0, len(sums)), Data: make([]float64, 0, len(sums))}
	for month := range sums {
		chart.Labels = append(chart.Labels, month)
	}
	sort.Strings(chart.Labels)
	for _, month := range chart.Labels {
		chart.Data = append(chart.Data, float64(sums[month]))
	}
	writeJSON(w, http.StatusOK, chart)
}

func (b *Backend) handleKramaOptions(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	b.mu.Lock()
	out := make([]billing.Krama, 0, len(b.krama))
	for _, k := range b.krama {
		out = append(out, billing.Krama{ID: k.ID, NIK: k.NIK, Name: k.Name})
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleGetKrama(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	b.mu.Lock()
	k, ok := b.krama[billing.ID(chi.URLParam(r, "krama_id"))]
	b.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "Krama tidak ditemukan.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": k})
}

func (b *Backend) handleCreateKrama(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var in billing.KramaInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fields := b.validateResidentLocked(residentFields{
		NIK: in.NIK, Name: in.Name, BanjarID: in.BanjarID, Email: in.Email,
	}, "", nil)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	id := b.nextKramaIDLocked()
	bj, _ := banjarByID(in.BanjarID)
	k := billing.Krama{
		ID: id, NIK: in.NIK, Name: in.Name, Gender: in.Gender, Status: in.Status, Email: in.Email, Banjar: bj,
	}
	b.krama[id] = k
	if in.Email != "" && in.Password != "" {
		b.addAccountLocked(in.Email, in.Password, in.Name, domainauth.RoleResident, id)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Krama berhasil ditambahkan.", "data": k})
}

func (b *Backend) handleUpdateKrama(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var in billing.KramaInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}
	id := billing.ID(chi.URLParam(r, "krama_id"))

	b.mu.Lock()
	defer b.mu.Unlock()

	k, ok := b.krama[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Krama tidak ditemukan.")
		return
	}
	owner := b.accountOfKramaLocked(id)
	fields := b.validateResidentLocked(residentFields{
		NIK: in.NIK, Name: in.Name, BanjarID: in.BanjarID, Email: in.Email,
	}, id, owner)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	k.NIK, k.Name, k.Gender, k.Status = in.NIK, in.Name, in.Gender, in.Status
	k.Banjar, _ = banjarByID(in.BanjarID)
	if in.Email != "" {
		k.Email = in.Email
	}
	b.krama[id] = k
	if owner != nil {
		owner.user.Name = in.Name
		if in.Email != "" {
			b.renameAccountLocked(owner, in.Email)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Krama berhasil diperbarui.", "data": k})
}

func (b *Backend) handleDeleteKrama(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	id := billing.ID(chi.URLParam(r, "krama_id"))

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.krama[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Krama tidak ditemukan.")
		return
	}
	delete(b.krama, id)
	for billID, bill := range b.bills {
		if bill.Krama != nil && bill.Krama.ID == id {
			delete(b.bills, billID)
		}
	}
	writeMessage(w, http.StatusOK, "Krama berhasil dihapus.")
}

func (b *Backend) handleKramaHistory(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	id := billing.ID(chi.URLParam(r, "krama_id"))

	b.mu.Lock()
	k, ok := b.krama[id]
	history := make([]billing.Bill, 0)
	for _, bill := range b.bills {
		if bill.Krama != nil && bill.Krama.ID == id {
			history = append(history, *bill)
		}
	}
	b.mu.Unlock()

	if !ok {
		writeMessage(w, http.StatusNotFound, "Krama tidak ditemukan.")
		return
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Period > history[j].Period })
	writeJSON(w, http.StatusOK, billing.KramaHistory{Krama: k, History: history})
}

func (b *Backend) handleCreateTagihan(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var in billing.BillInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k, ok := b.krama[in.KramaID]
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Krama tidak ditemukan.",
			"errors":  map[string][]string{"krama_id": {"Krama tidak ditemukan."}},
		})
		return
	}
	if strings.TrimSpace(in.Period) == "" {
		writeInvalid(w, map[string][]string{"tanggal": {"Tanggal wajib diisi."}})
		return
	}
	owner := k
	bill := &billing.Bill{
		ID:            b.nextBillIDLocked(),
		Krama:         &owner,
		Period:        in.Period,
		Dues:          in.Dues,
		Dedosan:       in.Dedosan,
		Peturuhan:     in.Peturuhan,
		Total:         in.Dues + in.Dedosan + in.Peturuhan,
		PaymentStatus: billing.PaymentUnpaid,
	}
	b.bills[bill.ID] = bill
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Tagihan berhasil dibuat.", "data": *bill})
}

func (b *Backend) handleListTagihan(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	q := r.URL.Query()
	month, _ := strconv.Atoi(q.Get("bulan"))
	year, _ := strconv.Atoi(q.Get("tahun"))
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	b.mu.Lock()
	out := make([]billing.Bill, 0)
	for _, bill := range b.bills {
		if matchesPeriod(bill.Period, month, year) {
			out = append(out, *bill)
		}
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	lastPage := max(1, (len(out)+reportPerPage-1)/reportPerPage)
	start := min(len(out), (page-1)*reportPerPage)
	end := min(len(out), start+reportPerPage)
	writeJSON(w, http.StatusOK, billing.BillPage{
		Bills: out[start:end],
		Meta:  billing.PageMeta{CurrentPage: page, LastPage: lastPage, PerPage: reportPerPage, Total: len(out)},
	})
}

// matchesPeriod filters "YYYY-MM-DD" periods; zero month or year matches any.
func matchesPeriod(period string, month, year int) bool {
	if year > 0 && !strings.HasPrefix(period, strconv.Itoa(year)+"-") {
		return false
	}
	if month > 0 && (len(period) < 7 || period[5:7] != fmt.Sprintf("%02d", month)) {
		return false
	}
	return true
}

func (b *Backend) handleValidatePayment(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var in struct {
		BillID billing.ID `json:"tagihan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Payload tidak valid.")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bill, ok := b.bills[in.BillID]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Tagihan tidak ditemukan.")
		return
	}
	if bill.IsPaid() {
		writeMessage(w, http.StatusConflict, "Tagihan sudah lunas.")
		return
	}
	bill.PaymentStatus = billing.PaymentPaid
	bill.PendingTransactionID = ""
	writeMessage(w, http.StatusOK, "Pembayaran tunai berhasil divalidasi.")
}

func (b *Backend) handleExportToSheet(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, billing.SheetExport{
		Message:        "Data berhasil diekspor ke Google Sheet.",
		SpreadsheetURL: SheetURL,
	})
}
