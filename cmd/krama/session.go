package main

import (
	"errors"
	"fmt"

	"github.com/kramabill/billing-krama/internal/bootstrap"
	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/nav"
)

var errNotSignedIn = errors.New("belum login; jalankan `krama login` terlebih dahulu")

// withApp wires the client, replays the stored token and hands the app to fn.
func withApp(cc *commandContext, fn func(app *bootstrap.App) error) error {
	app, err := bootstrap.NewApp(cc.Ctx, bootstrap.AppOptions{
		Config:  &cc.Config,
		Logger:  cc.Logger,
		Notices: noticePrinter(cc.Err),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			cc.Logger.WarnContext(cc.Ctx, "close app failed", "error", cerr)
		}
	}()

	if err := app.Session.Initialize(cc.Ctx); err != nil {
		cc.Logger.WarnContext(cc.Ctx, "session initialisation failed", "error", err)
	}
	return fn(app)
}

// enter opens path through the route guards and fails when the guards send
// the user elsewhere.
func enter(app *bootstrap.App, path string) (nav.Outcome, error) {
	out := app.Navigator.Open(path)
	if out.NotFound {
		return out, fmt.Errorf("halaman %s tidak ditemukan", path)
	}
	if out.Rendered() && len(out.Redirects) == 0 {
		return out, nil
	}
	if app.Session.State().Phase != domainauth.PhaseAuthenticated {
		return out, errNotSignedIn
	}
	return out, fmt.Errorf("akses ditolak untuk %s (dialihkan ke %s)", path, out.Path())
}
