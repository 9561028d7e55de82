package main

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kramabill/billing-krama/internal/bootstrap"
	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/guard"
	"github.com/kramabill/billing-krama/internal/nav"
)

type loginOptions struct {
	Email    string
	Password string
}

func parseLoginFlags(cc *commandContext, args []string) (loginOptions, error) {
	fs := newFlagSet(cc, "login")
	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password; read from stdin when omitted")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return opts, fmt.Errorf("%w: login requires -email", errUsage)
	}
	if opts.Password == "" {
		pw, err := readLine(cc, "Password: ")
		if err != nil {
			return opts, err
		}
		opts.Password = pw
	}
	return opts, nil
}

func readLine(cc *commandContext, prompt string) (string, error) {
	if err := writef(cc.Err, "%s", prompt); err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(cc.In)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", fmt.Errorf("%w: no input", errUsage)
	}
	return strings.TrimRight(scanner.Text(), "\r"), nil
}

func runLogin(cc *commandContext, args []string) error {
	opts, err := parseLoginFlags(cc, args)
	if err != nil {
		return err
	}
	return withApp(cc, func(app *bootstrap.App) error {
		if err := app.Session.Login(cc.Ctx, opts.Email, opts.Password); err != nil {
			return err
		}
		out := app.Navigator.Open(nav.PathRoot)
		user := app.Session.State().User
		return writef(cc.Out, "Login berhasil sebagai %s <%s> (%s). Beranda: %s\n",
			user.Name, user.Email, user.Role, out.Path())
	})
}

func parseRegisterFlags(cc *commandContext, args []string) (billing.RegisterInput, error) {
	fs := newFlagSet(cc, "register")
	var in billing.RegisterInput
	var banjar string
	fs.StringVar(&in.Name, "name", "", "Full name (required)")
	fs.StringVar(&in.Email, "email", "", "Email (required)")
	fs.StringVar(&in.Password, "password", "", "Password; read from stdin when omitted")
	fs.StringVar(&in.NIK, "nik", "", "National identity number (required)")
	fs.StringVar(&in.Gender, "gender", billing.GenderMale, "laki-laki or perempuan")
	fs.StringVar(&in.Status, "status", billing.StatusKramaDesa, "kramadesa, krama_tamiu or tamiu")
	fs.StringVar(&banjar, "banjar", "", "Banjar ID (required; list them with: krama banjar)")
	if err := fs.Parse(args); err != nil {
		return in, err
	}
	in.BanjarID = billing.ID(strings.TrimSpace(banjar))

	var missing []string
	for flagName, v := range map[string]string{"name": in.Name, "email": in.Email, "nik": in.NIK, "banjar": banjar} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, "-"+flagName)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return in, fmt.Errorf("%w: register requires %s", errUsage, strings.Join(missing, ", "))
	}
	if in.Password == "" {
		pw, err := readLine(cc, "Password: ")
		if err != nil {
			return in, err
		}
		in.Password = pw
	}
	return in, nil
}

func runRegister(cc *commandContext, args []string) error {
	in, err := parseRegisterFlags(cc, args)
	if err != nil {
		return err
	}
	return withApp(cc, func(app *bootstrap.App) error {
		if err := app.Session.Register(cc.Ctx, in); err != nil {
			return err
		}
		st := app.Session.State()
		if st.Phase != domainauth.PhaseAuthenticated {
			return writef(cc.Out, "Registrasi berhasil. Silakan login dengan %s.\n", in.Email)
		}
		return writef(cc.Out, "Registrasi berhasil. Masuk sebagai %s.\n", st.User.Name)
	})
}

func runLogout(cc *commandContext, args []string) error {
	if err := newFlagSet(cc, "logout").Parse(args); err != nil {
		return err
	}
	return withApp(cc, func(app *bootstrap.App) error {
		app.Session.Logout(cc.Ctx)
		return writeln(cc.Out, "Logout berhasil.")
	})
}

func runWhoAmI(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "whoami")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withApp(cc, func(app *bootstrap.App) error {
		st := app.Session.State()
		if st.Phase != domainauth.PhaseAuthenticated || st.User == nil {
			return errNotSignedIn
		}
		user := *st.User
		return out.render(cc.Out, user, func(tw *tabwriter.Writer) error {
			if err := writef(tw, "ID\t%d\n", user.ID); err != nil {
				return err
			}
			if err := writef(tw, "Nama\t%s\n", user.Name); err != nil {
				return err
			}
			if err := writef(tw, "Email\t%s\n", user.Email); err != nil {
				return err
			}
			if err := writef(tw, "Peran\t%s\n", user.Role); err != nil {
				return err
			}
			return writef(tw, "Beranda\t%s\n", guard.Home(user.Role))
		})
	})
}
