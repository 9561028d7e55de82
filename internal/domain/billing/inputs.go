package billing

// RegisterInput is the combined account + resident profile submitted on
// self-registration.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	NIK      string `json:"nik"`
	Gender   string `json:"gender"`
	Status   string `json:"status"`
	BanjarID ID     `json:"banjar_id"`
}

// ProfileInput is a resident's self-service profile edit. Password is only
// sent when the resident wants to change it.
type ProfileInput struct {
	NIK      string `json:"nik"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Status   string `json:"status"`
	BanjarID ID     `json:"banjar_id"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// KramaInput is the admin create/update payload for a resident.
type KramaInput struct {
	NIK      string `json:"nik"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Status   string `json:"status"`
	BanjarID ID     `json:"banjar_id"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// BillInput is the admin payload that issues a new bill.
type BillInput struct {
	KramaID   ID     `json:"krama_id"`
	Period    string `json:"tanggal"`
	Dues      Amount `json:"iuran"`
	Dedosan   Amount `json:"dedosan"`
	Peturuhan Amount `json:"peturuhan"`
}

// ReportFilter selects a month of bills for the admin report.
type ReportFilter struct {
	Month int
	Year  int
	Page  int
}

// Defaults for resident enumerations used by the registration forms.
const (
	GenderMale         = "laki-laki"
	GenderFemale       = "perempuan"
	StatusKramaDesa    = "kramadesa"
	StatusKramaTamiu   = "krama_tamiu"
	StatusTamiu        = "tamiu"
	MinSearchQueryRune = 3
)
