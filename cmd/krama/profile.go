package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kramabill/billing-krama/internal/bootstrap"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/nav"
)

func runProfile(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "profile")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathProfile); err != nil {
			return err
		}
		k, err := app.API.MyProfile(cc.Ctx)
		if err != nil {
			return err
		}
		return out.render(cc.Out, k, func(tw *tabwriter.Writer) error {
			return writeKramaDetail(tw, k)
		})
	})
}

func writeKramaDetail(tw *tabwriter.Writer, k billing.Krama) error {
	rows := [][2]string{
		{"NIK", k.NIK},
		{"Nama", k.Name},
		{"Jenis kelamin", k.Gender},
		{"Status", k.Status},
		{"Banjar", k.BanjarName()},
		{"Email", k.Email},
	}
	for _, r := range rows {
		if err := writef(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return nil
}

// residentFlags are the resident form fields shared by profile edit and the
// admin krama forms. Empty values keep what the record already holds.
type residentFlags struct {
	NIK      string
	Name     string
	Gender   string
	Status   string
	BanjarID string
	Email    string
	Password string
}

func (f *residentFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.Name, "name", "", "Full name")
	fs.StringVar(&f.NIK, "nik", "", "National identity number")
	fs.StringVar(&f.Gender, "gender", "", "laki-laki or perempuan")
	fs.StringVar(&f.Status, "status", "", "kramadesa, krama_tamiu or tamiu")
	fs.StringVar(&f.BanjarID, "banjar", "", "Banjar ID; list them with: krama banjar")
	fs.StringVar(&f.Email, "email", "", "Email")
	fs.StringVar(&f.Password, "password", "", "New password")
}

// apply overlays the set flags on k.
func (f residentFlags) apply(k billing.Krama) billing.Krama {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&k.NIK, f.NIK)
	set(&k.Name, f.Name)
	set(&k.Gender, f.Gender)
	set(&k.Status, f.Status)
	set(&k.Email, f.Email)
	if id := strings.TrimSpace(f.BanjarID); id != "" {
		k.Banjar = &billing.Banjar{ID: billing.ID(id)}
	}
	return k
}

func banjarID(k billing.Krama) billing.ID {
	if k.Banjar == nil {
		return ""
	}
	return k.Banjar.ID
}

// writeFieldErrors lists validation messages per field, one per line.
func writeFieldErrors(w io.Writer, err error) {
	if !apperrors.IsValidation(err) {
		return
	}
	fields := apperrors.GetFields(err)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, msg := range fields[name] {
			_ = writef(w, "  %s: %s\n", name, msg)
		}
	}
}

func runProfileEdit(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "profile edit")
	var form residentFlags
	form.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		return editProfile(cc, app, form)
	})
}

// editProfile loads the current profile as defaults, saves the merged form
// and refreshes the session's identity with the account the backend returns.
func editProfile(cc *commandContext, app *bootstrap.App, form residentFlags) error {
	if _, err := enter(app, nav.PathProfile); err != nil {
		return err
	}
	current, err := app.API.MyProfile(cc.Ctx)
	if err != nil {
		return err
	}

	k := form.apply(current)
	user, err := app.API.UpdateMyProfile(cc.Ctx, billing.ProfileInput{
		NIK:      k.NIK,
		Name:     k.Name,
		Gender:   k.Gender,
		Status:   k.Status,
		BanjarID: banjarID(k),
		Email:    k.Email,
		Password: form.Password,
	})
	if err != nil {
		writeFieldErrors(cc.Err, err)
		return fmt.Errorf("update profile: %w", err)
	}
	app.Session.UpdateUser(user)
	return writef(cc.Out, "Profil berhasil diperbarui (%s <%s>).\n", user.Name, user.Email)
}
