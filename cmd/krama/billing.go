package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kramabill/billing-krama/internal/bootstrap"
	"github.com/kramabill/billing-krama/internal/checkout"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/nav"
)

type billsOptions struct {
	KramaID string
	Output  outputFlags
}

func runBills(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "bills")
	var opts billsOptions
	fs.StringVar(&opts.KramaID, "krama", "", "List another resident's bills by krama ID")
	opts.Output.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		bills, err := loadBills(cc, app, strings.TrimSpace(opts.KramaID))
		if err != nil {
			return err
		}
		return opts.Output.render(cc.Out, bills, func(tw *tabwriter.Writer) error {
			return writeBillTable(tw, bills)
		})
	})
}

// loadBills opens the screen that owns the listing before fetching it, so
// the route guards decide whether the caller may see it.
func loadBills(cc *commandContext, app *bootstrap.App, kramaID string) ([]billing.Bill, error) {
	if kramaID == "" {
		if _, err := enter(app, nav.PathMyBills); err != nil {
			return nil, err
		}
		return app.API.MyUnpaidBills(cc.Ctx)
	}
	if _, err := enter(app, nav.PathSearchKrama); err != nil {
		return nil, err
	}
	return app.API.KramaUnpaidBills(cc.Ctx, billing.ID(kramaID))
}

func writeBillTable(tw *tabwriter.Writer, bills []billing.Bill) error {
	if len(bills) == 0 {
		return writeln(tw, "Tidak ada tagihan yang belum dibayar.")
	}
	if err := writeln(tw, "ID\tKRAMA\tPERIODE\tTOTAL\tSTATUS"); err != nil {
		return err
	}
	var total billing.Amount
	for _, b := range bills {
		status := "belum bayar"
		if b.HasPendingTransaction() {
			status = "menunggu pembayaran #" + b.PendingTransactionID.String()
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.OwnerName(), b.Period, b.Total.Rupiah(), status); err != nil {
			return err
		}
		total += b.Total
	}
	return writef(tw, "\t\tTotal\t%s\t\n", total.Rupiah())
}

func runSearch(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "search")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathSearchKrama); err != nil {
			return err
		}
		found, err := app.API.SearchKrama(cc.Ctx, query)
		if err != nil {
			return err
		}
		return out.render(cc.Out, found, func(tw *tabwriter.Writer) error {
			return writeKramaTable(tw, found)
		})
	})
}

func writeKramaTable(tw *tabwriter.Writer, list []billing.Krama) error {
	if len(list) == 0 {
		return writeln(tw, "Krama tidak ditemukan.")
	}
	if err := writeln(tw, "ID\tNIK\tNAMA\tBANJAR\tSTATUS"); err != nil {
		return err
	}
	for _, k := range list {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.NIK, k.Name, k.BanjarName(), k.Status); err != nil {
			return err
		}
	}
	return nil
}

type payOptions struct {
	KramaID string
	BillIDs string
	Confirm bool
	Output  outputFlags
}

func parsePayFlags(cc *commandContext, args []string) (payOptions, error) {
	fs := newFlagSet(cc, "pay")
	var opts payOptions
	fs.StringVar(&opts.KramaID, "krama", "", "Pay another resident's bills by krama ID")
	fs.StringVar(&opts.BillIDs, "bills", "", "Comma-separated bill IDs; every unpaid bill when empty")
	fs.BoolVar(&opts.Confirm, "confirm", false, "Confirm the payment right after checkout")
	opts.Output.register(fs)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// runPay fills the cart the same way the bill screens do, then checks out.
func runPay(cc *commandContext, args []string) error {
	opts, err := parsePayFlags(cc, args)
	if err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		bills, err := loadBills(cc, app, strings.TrimSpace(opts.KramaID))
		if err != nil {
			return err
		}
		selected, err := selectBills(bills, opts.BillIDs)
		if err != nil {
			return err
		}

		for _, b := range selected {
			if err := app.Checkout.Apply(checkout.BillAction(b)); err != nil {
				return err
			}
		}
		if app.Cart.Len() == 0 {
			return fmt.Errorf("tagihan %s sudah menunggu pembayaran; jalankan `krama confirm`", selected[0].PendingTransactionID)
		}

		if _, err := enter(app, nav.PathCheckout); err != nil {
			return err
		}
		tx, err := app.Checkout.Checkout(cc.Ctx)
		if err != nil {
			return err
		}
		defer app.Checkout.Leave()

		if opts.Confirm {
			if err := app.Checkout.ConfirmPayment(cc.Ctx, tx.ID); err != nil {
				return err
			}
		}
		view := app.Checkout.PaymentView(tx.ID)
		return opts.Output.render(cc.Out, map[string]any{
			"transaction_id": tx.ID,
			"total_amount":   tx.TotalAmount,
			"paid":           view.Paid,
			"screen":         app.Navigator.Current(),
		}, func(tw *tabwriter.Writer) error {
			return writeTransactionSummary(tw, tx, view.Paid)
		})
	})
}

// selectBills keeps bills whose ID is in csv, or every bill when csv is
// empty. Bills already attached to a pending transaction reopen that
// payment instead of entering the cart.
func selectBills(bills []billing.Bill, csv string) ([]billing.Bill, error) {
	if len(bills) == 0 {
		return nil, errors.New("tidak ada tagihan yang belum dibayar")
	}
	var wanted map[billing.ID]bool
	if csv = strings.TrimSpace(csv); csv != "" {
		wanted = make(map[billing.ID]bool)
		for _, id := range strings.Split(csv, ",") {
			if id = strings.TrimSpace(id); id != "" {
				wanted[billing.ID(id)] = true
			}
		}
	}

	var out []billing.Bill
	for _, b := range bills {
		if wanted != nil && !wanted[b.ID] {
			continue
		}
		delete(wanted, b.ID)
		out = append(out, b)
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id.String())
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("tagihan %s tidak ada di daftar tagihan belum dibayar", strings.Join(missing, ", "))
	}
	if len(out) == 0 {
		return nil, errors.New("tidak ada tagihan yang dipilih")
	}
	return out, nil
}

func writeTransactionSummary(tw *tabwriter.Writer, tx billing.Transaction, paid bool) error {
	status := "menunggu pembayaran"
	if paid {
		status = "lunas"
	}
	if err := writef(tw, "Transaksi\t#%s\n", tx.ID); err != nil {
		return err
	}
	if err := writef(tw, "Total\t%s\n", tx.TotalAmount.Rupiah()); err != nil {
		return err
	}
	if err := writef(tw, "Status\t%s\n", status); err != nil {
		return err
	}
	if !paid {
		return writef(tw, "Konfirmasi\tkrama confirm %s\n", tx.ID)
	}
	return nil
}

func runConfirm(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "confirm")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: confirm requires exactly one transaction ID", errUsage)
	}
	txID := billing.ID(strings.TrimSpace(fs.Arg(0)))

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PaymentPath(txID.String())); err != nil {
			return err
		}
		defer app.Checkout.Leave()
		if err := app.Checkout.ConfirmPayment(cc.Ctx, txID); err != nil {
			return err
		}
		return writef(cc.Out, "Transaksi #%s lunas.\n", txID)
	})
}

func runHistory(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "history")
	var out outputFlags
	page := fs.Int("page", 1, "Page number")
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cc, func(app *bootstrap.App) error {
		if _, err := enter(app, nav.PathHistory); err != nil {
			return err
		}
		res, err := app.API.MyTransactions(cc.Ctx, *page)
		if err != nil {
			return err
		}
		return out.render(cc.Out, res, func(tw *tabwriter.Writer) error {
			return writeHistoryTable(tw, res)
		})
	})
}

func writeHistoryTable(tw *tabwriter.Writer, res billing.TransactionPage) error {
	if len(res.Transactions) == 0 {
		return writeln(tw, "Belum ada riwayat pembayaran.")
	}
	if err := writeln(tw, "ID\tTANGGAL\tMETODE\tTOTAL\tSTATUS"); err != nil {
		return err
	}
	for _, tx := range res.Transactions {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.CreatedAt, tx.PaymentMethod, tx.TotalAmount.Rupiah(), tx.Status); err != nil {
			return err
		}
	}
	meta := res.Meta
	if meta.HasNext() {
		return writef(tw, "Halaman %d dari %d (krama history -page %d)\n", meta.CurrentPage, meta.LastPage, meta.CurrentPage+1)
	}
	return writef(tw, "Halaman %d dari %d\n", meta.CurrentPage, max(meta.LastPage, 1))
}
