package main

import (
	"flag"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kramabill/billing-krama/internal/bootstrap"
	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/nav"
)

func runKramaList(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "krama list")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminKramaList); err != nil {
			return err
		}
		list, err := app.API.ListKrama(cc.Ctx)
		if err != nil {
			return err
		}
		return out.render(cc.Out, list, func(tw *tabwriter.Writer) error {
			return writeKramaTable(tw, list)
		})
	})
}

// parseKramaID reads "<sub> <krama_id> [flags]" for the per-resident
// subcommands.
func parseKramaID(cc *commandContext, sub string, args []string, register func(fs *flag.FlagSet)) (billing.ID, error) {
	id, rest := splitID(args)
	fs := newFlagSet(cc, "krama "+sub)
	if register != nil {
		register(fs)
	}
	if err := fs.Parse(rest); err != nil {
		return "", err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: krama %s <krama_id>", errUsage, sub)
	}
	return billing.ID(id), nil
}

func runKramaShow(cc *commandContext, args []string) error {
	var out outputFlags
	id, err := parseKramaID(cc, "show", args, out.register)
	if err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.KramaDetailPath(id.String())); err != nil {
			return err
		}
		res, err := app.API.KramaHistory(cc.Ctx, id)
		if err != nil {
			return err
		}
		return out.render(cc.Out, res, func(tw *tabwriter.Writer) error {
			if err := writeKramaDetail(tw, res.Krama); err != nil {
				return err
			}
			if err := writeln(tw); err != nil {
				return err
			}
			return writeBillReport(tw, res.History)
		})
	})
}

func runKramaAdd(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "krama add")
	var form residentFlags
	form.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	var missing []string
	for name, v := range map[string]string{"name": form.Name, "nik": form.NIK, "banjar": form.BanjarID} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: krama add requires %s", errUsage, strings.Join(missing, ", "))
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminAddKrama); err != nil {
			return err
		}
		k := form.apply(billing.Krama{Gender: billing.GenderMale, Status: billing.StatusKramaDesa})
		if err := app.API.CreateKrama(cc.Ctx, kramaInput(k, form.Password)); err != nil {
			writeFieldErrors(cc.Err, err)
			return fmt.Errorf("add krama: %w", err)
		}
		return writef(cc.Out, "Krama %s berhasil ditambahkan.\n", k.Name)
	})
}

func kramaInput(k billing.Krama, password string) billing.KramaInput {
	return billing.KramaInput{
		NIK:      k.NIK,
		Name:     k.Name,
		Gender:   k.Gender,
		Status:   k.Status,
		BanjarID: banjarID(k),
		Email:    k.Email,
		Password: password,
	}
}

func runKramaEdit(cc *commandContext, args []string) error {
	var form residentFlags
	id, err := parseKramaID(cc, "edit", args, form.register)
	if err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminKramaList); err != nil {
			return err
		}
		current, err := app.API.GetKrama(cc.Ctx, id)
		if err != nil {
			return err
		}
		k := form.apply(current)
		if err := app.API.UpdateKrama(cc.Ctx, id, kramaInput(k, form.Password)); err != nil {
			writeFieldErrors(cc.Err, err)
			return fmt.Errorf("update krama %s: %w", id, err)
		}
		return writef(cc.Out, "Krama %s berhasil diperbarui.\n", k.Name)
	})
}

func runKramaDelete(cc *commandContext, args []string) error {
	id, err := parseKramaID(cc, "delete", args, nil)
	if err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminKramaList); err != nil {
			return err
		}
		if err := app.API.DeleteKrama(cc.Ctx, id); err != nil {
			return err
		}
		return writef(cc.Out, "Krama %s dihapus.\n", id)
	})
}

// runKramaOptions prints the compact resident list the bill form picks from.
func runKramaOptions(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "krama options")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminCreateBill); err != nil {
			return err
		}
		list, err := app.API.KramaOptions(cc.Ctx)
		if err != nil {
			return err
		}
		return out.render(cc.Out, list, func(tw *tabwriter.Writer) error {
			if err := writeln(tw, "ID\tNIK\tNAMA"); err != nil {
				return err
			}
			for _, k := range list {
				if err := writef(tw, "%s\t%s\t%s\n", k.ID, k.NIK, k.Name); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// runBanjarList lists wards. Administrators read the admin list from the
// resident form; everyone else uses the public list the register form uses.
func runBanjarList(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "banjar")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		var (
			list []billing.Banjar
			err  error
		)
		if app.Session.State().Role() == domainauth.RoleAdmin {
			if _, err := enter(app, nav.PathAdminAddKrama); err != nil {
				return err
			}
			list, err = app.API.AdminBanjarList(cc.Ctx)
		} else {
			list, err = app.API.PublicBanjarList(cc.Ctx)
		}
		if err != nil {
			return err
		}
		return out.render(cc.Out, list, func(tw *tabwriter.Writer) error {
			if err := writeln(tw, "ID\tBANJAR"); err != nil {
				return err
			}
			for _, bj := range list {
				if err := writef(tw, "%s\t%s\n", bj.ID, bj.Name); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

type reportOptions struct {
	Filter billing.ReportFilter
	Output outputFlags
}

func runReportList(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "report list")
	var opts reportOptions
	fs.IntVar(&opts.Filter.Month, "month", 0, "Month 1-12; the backend picks the current month when omitted")
	fs.IntVar(&opts.Filter.Year, "year", 0, "Year, e.g. 2025")
	fs.IntVar(&opts.Filter.Page, "page", 1, "Page number")
	opts.Output.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.Filter.Month < 0 || opts.Filter.Month > 12 {
		return fmt.Errorf("%w: -month must be between 1 and 12", errUsage)
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminReport); err != nil {
			return err
		}
		res, err := app.API.ListTagihan(cc.Ctx, opts.Filter)
		if err != nil {
			return err
		}
		return opts.Output.render(cc.Out, res, func(tw *tabwriter.Writer) error {
			if err := writeBillReport(tw, res.Bills); err != nil {
				return err
			}
			meta := res.Meta
			if meta.HasNext() {
				return writef(tw, "Halaman %d dari %d (krama report -page %d)\n", meta.CurrentPage, meta.LastPage, meta.CurrentPage+1)
			}
			return writef(tw, "Halaman %d dari %d\n", meta.CurrentPage, max(meta.LastPage, 1))
		})
	})
}

// writeBillReport lists bills with their payment status, paid or not.
func writeBillReport(tw *tabwriter.Writer, bills []billing.Bill) error {
	if len(bills) == 0 {
		return writeln(tw, "Belum ada tagihan.")
	}
	if err := writeln(tw, "ID\tKRAMA\tPERIODE\tTOTAL\tSTATUS"); err != nil {
		return err
	}
	for _, b := range bills {
		status := "belum bayar"
		if b.IsPaid() {
			status = "lunas"
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.OwnerName(), b.Period, b.Total.Rupiah(), status); err != nil {
			return err
		}
	}
	return nil
}

type billFlags struct {
	KramaID   string
	Period    string
	Dues      int64
	Dedosan   int64
	Peturuhan int64
}

func runReportCreate(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "report create")
	var f billFlags
	fs.StringVar(&f.KramaID, "krama", "", "Krama ID to bill (required; list them with: krama krama options)")
	fs.StringVar(&f.Period, "period", time.Now().Format(time.DateOnly), "Billing date, YYYY-MM-DD")
	fs.Int64Var(&f.Dues, "iuran", 0, "Dues in rupiah")
	fs.Int64Var(&f.Dedosan, "dedosan", 0, "Dedosan in rupiah")
	fs.Int64Var(&f.Peturuhan, "peturuhan", 0, "Peturuhan in rupiah")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(f.KramaID) == "" {
		return fmt.Errorf("%w: report create requires -krama", errUsage)
	}
	if _, err := time.Parse(time.DateOnly, f.Period); err != nil {
		return fmt.Errorf("%w: -period must be YYYY-MM-DD", errUsage)
	}
	if f.Dues < 0 || f.Dedosan < 0 || f.Peturuhan < 0 {
		return fmt.Errorf("%w: amounts must not be negative", errUsage)
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminCreateBill); err != nil {
			return err
		}
		k, err := app.API.GetKrama(cc.Ctx, billing.ID(strings.TrimSpace(f.KramaID)))
		if err != nil {
			return err
		}
		in := billing.BillInput{
			KramaID:   k.ID,
			Period:    f.Period,
			Dues:      billing.Amount(f.Dues),
			Dedosan:   billing.Amount(f.Dedosan),
			Peturuhan: billing.Amount(f.Peturuhan),
		}
		if err := app.API.CreateTagihan(cc.Ctx, in); err != nil {
			writeFieldErrors(cc.Err, err)
			return fmt.Errorf("create bill: %w", err)
		}
		total := in.Dues + in.Dedosan + in.Peturuhan
		return writef(cc.Out, "Tagihan %s untuk %s sebesar %s dibuat.\n", in.Period, k.Name, total.Rupiah())
	})
}

func runReportValidate(cc *commandContext, args []string) error {
	id, rest := splitID(args)
	fs := newFlagSet(cc, "report validate")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: report validate <tagihan_id>", errUsage)
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminReport); err != nil {
			return err
		}
		msg, err := app.API.ValidatePayment(cc.Ctx, billing.ID(strings.TrimSpace(id)))
		if err != nil {
			return err
		}
		return writeln(cc.Out, msg)
	})
}

func runReportExport(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "report export")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathAdminReport); err != nil {
			return err
		}
		res, err := app.API.ExportToSheet(cc.Ctx)
		if err != nil {
			return err
		}
		return out.render(cc.Out, res, func(tw *tabwriter.Writer) error {
			if err := writeln(tw, res.Message); err != nil {
				return err
			}
			if res.SpreadsheetURL == "" {
				return nil
			}
			return writef(tw, "Spreadsheet\t%s\n", res.SpreadsheetURL)
		})
	})
}
