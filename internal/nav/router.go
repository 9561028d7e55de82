// Package nav maps screen paths to guarded routes and moves the front end
// between them.
package nav

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kramabill/billing-krama/internal/guard"
)

// Screen paths.
const (
	PathRoot            = "/"
	PathLogin           = guard.PathLogin
	PathRegister        = "/register"
	PathAdminHome       = guard.HomeAdmin
	PathAdminCreateBill = "/admin/create-tagihan"
	PathAdminReport     = "/admin/laporan"
	PathAdminAddKrama   = "/admin/tambah-krama"
	PathAdminKramaList  = "/admin/daftar-krama"
	PathAdminKramaInfo  = "/admin/krama/{krama_id}"
	PathResidentHome    = guard.HomeResident
	PathMyBills         = "/user/tagihan-saya"
	PathSearchKrama     = "/user/cari-krama"
	PathCheckout        = "/user/checkout"
	PathPayment         = "/user/payment/{transaction_id}"
	PathHistory         = "/user/riwayat"
	PathProfile         = "/user/profil"
)

// PaymentPath returns the confirmation screen for a transaction.
func PaymentPath(transactionID string) string {
	return strings.Replace(PathPayment, "{transaction_id}", transactionID, 1)
}

// KramaDetailPath returns the admin detail screen for a resident.
func KramaDetailPath(kramaID string) string {
	return strings.Replace(PathAdminKramaInfo, "{krama_id}", kramaID, 1)
}

// Route is one screen in the route table.
type Route struct {
	Pattern string
	Name    string
	Class   guard.Class
	// RedirectTo makes the route an unconditional alias.
	RedirectTo string
}

// Match is a resolved path.
type Match struct {
	Route  Route
	Path   string
	Params map[string]string
}

// Param returns a path parameter or "".
func (m Match) Param(key string) string { return m.Params[key] }

// DefaultRoutes is the screen table of the billing front end.
func DefaultRoutes() []Route {
	return []Route{
		{Pattern: PathRoot, Name: "root", Class: guard.Public, RedirectTo: PathAdminHome},
		{Pattern: PathLogin, Name: "login", Class: guard.GuestOnly},
		{Pattern: PathRegister, Name: "register", Class: guard.GuestOnly},

		{Pattern: PathAdminHome, Name: "admin-dashboard", Class: guard.AdminOnly},
		{Pattern: PathAdminCreateBill, Name: "admin-create-tagihan", Class: guard.AdminOnly},
		{Pattern: PathAdminReport, Name: "admin-laporan", Class: guard.AdminOnly},
		{Pattern: PathAdminAddKrama, Name: "admin-tambah-krama", Class: guard.AdminOnly},
		{Pattern: PathAdminKramaList, Name: "admin-daftar-krama", Class: guard.AdminOnly},
		{Pattern: PathAdminKramaInfo, Name: "admin-krama-detail", Class: guard.AdminOnly},

		{Pattern: PathResidentHome, Name: "user-dashboard", Class: guard.ResidentOnly},
		{Pattern: PathMyBills, Name: "user-tagihan-saya", Class: guard.ResidentOnly},
		{Pattern: PathSearchKrama, Name: "user-cari-krama", Class: guard.ResidentOnly},
		{Pattern: PathCheckout, Name: "user-checkout", Class: guard.ResidentOnly},
		{Pattern: PathPayment, Name: "user-payment", Class: guard.ResidentOnly},
		{Pattern: PathHistory, Name: "user-riwayat", Class: guard.ResidentOnly},
		{Pattern: PathProfile, Name: "user-profil", Class: guard.ResidentOnly},
	}
}

// Router resolves paths against a chi routing tree.
type Router struct {
	mux    *chi.Mux
	routes map[string]Route
}

// NewRouter builds a Router. With no routes it uses DefaultRoutes.
func NewRouter(routes ...Route) *Router {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	r := &Router{
		mux:    chi.NewRouter(),
		routes: make(map[string]Route, len(routes)),
	}
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	for _, rt := range routes {
		r.mux.Get(rt.Pattern, noop)
		r.routes[rt.Pattern] = rt
	}
	return r
}

// Resolve finds the route for path. Query strings and trailing slashes are
// ignored.
func (r *Router) Resolve(path string) (Match, bool) {
	clean := normalize(path)

	rctx := chi.NewRouteContext()
	pattern := r.mux.Find(rctx, http.MethodGet, clean)
	if pattern == "" {
		return Match{Path: clean}, false
	}
	rt, ok := r.routes[pattern]
	if !ok {
		return Match{Path: clean}, false
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return Match{Route: rt, Path: clean, Params: params}, true
}

// Routes returns the registered routes.
func (r *Router) Routes() []Route {
	out := make([]Route, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt)
	}
	return out
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
