package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/kramabill/billing-krama/config"
	"github.com/kramabill/billing-krama/internal/bootstrap"
	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/nav"
)

type residentDashboard struct {
	Stats billing.Stats  `json:"stats"`
	Bills []billing.Bill `json:"unpaid_bills"`
}

type adminDashboard struct {
	Stats billing.Stats `json:"stats"`
	Chart billing.Chart `json:"chart"`
}

func runDashboard(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "dashboard")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		switch app.Session.State().Role() {
		case domainauth.RoleAdmin:
			return showAdminDashboard(cc, app, out)
		case domainauth.RoleResident:
			return showResidentDashboard(cc, app, out)
		default:
			return errNotSignedIn
		}
	})
}

// showResidentDashboard fetches the counters and the open bills concurrently.
func showResidentDashboard(cc *commandContext, app *bootstrap.App, out outputFlags) error {
	if _, err := enter(app, nav.PathResidentHome); err != nil {
		return err
	}

	var dash residentDashboard
	g, gctx := errgroup.WithContext(cc.Ctx)
	g.Go(func() error {
		stats, err := app.API.UserDashboardStats(gctx)
		dash.Stats = stats
		return err
	})
	g.Go(func() error {
		bills, err := app.API.MyUnpaidBills(gctx)
		dash.Bills = bills
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return out.render(cc.Out, dash, func(tw *tabwriter.Writer) error {
		if err := writeStats(tw, dash.Stats); err != nil {
			return err
		}
		if err := writeln(tw); err != nil {
			return err
		}
		return writeBillTable(tw, dash.Bills)
	})
}

func showAdminDashboard(cc *commandContext, app *bootstrap.App, out outputFlags) error {
	if _, err := enter(app, nav.PathAdminHome); err != nil {
		return err
	}

	var dash adminDashboard
	g, gctx := errgroup.WithContext(cc.Ctx)
	g.Go(func() error {
		stats, err := app.API.AdminDashboardStats(gctx)
		dash.Stats = stats
		return err
	})
	g.Go(func() error {
		chart, err := app.API.AdminDashboardChart(gctx)
		dash.Chart = chart
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return out.render(cc.Out, dash, func(tw *tabwriter.Writer) error {
		if err := writeStats(tw, dash.Stats); err != nil {
			return err
		}
		for i, label := range dash.Chart.Labels {
			if i >= len(dash.Chart.Data) {
				break
			}
			if err := writef(tw, "%s\t%s\n", label, billing.Amount(dash.Chart.Data[i]).Rupiah()); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeStats(tw *tabwriter.Writer, stats billing.Stats) error {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writef(tw, "%s\t%v\n", k, stats[k]); err != nil {
			return err
		}
	}
	return nil
}

func runShowConfig(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "config")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	base, source := cc.Config.API.ResolveBaseURL()
	storage := cc.Config.Storage
	location := storage.TokenFile
	if storage.TokenStore == config.TokenStoreRedis {
		location = "key " + storage.TokenKey
	}
	view := map[string]any{
		"base_url":        base,
		"base_url_source": string(source),
		"token_store":     storage.TokenStore,
		"token_location":  location,
		"payment_method":  cc.Config.UI.PaymentMethod,
		"metrics_enabled": cc.Config.Observability.Metrics.IsEnabled(),
	}
	return out.render(cc.Out, view, func(tw *tabwriter.Writer) error {
		rows := [][2]string{
			{"Backend", fmt.Sprintf("%s (%s)", base, source)},
			{"Token", fmt.Sprintf("%s: %s", storage.TokenStore, location)},
			{"Metode bayar", cc.Config.UI.PaymentMethod},
			{"Metrik", fmt.Sprintf("%t", cc.Config.Observability.Metrics.IsEnabled())},
		}
		for _, r := range rows {
			if err := writef(tw, "%s\t%s\n", r[0], r[1]); err != nil {
				return err
			}
		}
		return nil
	})
}
