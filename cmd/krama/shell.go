package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/kramabill/billing-krama/internal/bootstrap"
	"github.com/kramabill/billing-krama/internal/checkout"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	"github.com/kramabill/billing-krama/internal/nav"
)

const shellPrompt = "krama> "

// syncWriter serialises writes from the prompt loop and from delayed
// navigations that fire on timer goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type shell struct {
	cc  *commandContext
	app *bootstrap.App
	out io.Writer
	// listed remembers the bills shown last so `add` can refer to them by ID.
	listed map[billing.ID]billing.Bill
}

type shellCommand struct {
	usage string
	run   func(sh *shell, args []string) error
}

func shellCommands() map[string]shellCommand {
	return map[string]shellCommand{
		"help":     {"help", (*shell).help},
		"open":     {"open <path>", (*shell).open},
		"where":    {"where", (*shell).where},
		"login":    {"login <email> <password>", (*shell).login},
		"logout":   {"logout", (*shell).logout},
		"bills":    {"bills [krama_id]", (*shell).bills},
		"search":   {"search <nama|nik>", (*shell).search},
		"add":      {"add <tagihan_id>", (*shell).add},
		"remove":   {"remove <tagihan_id>", (*shell).remove},
		"cart":     {"cart", (*shell).cart},
		"checkout": {"checkout", (*shell).checkout},
		"pay":      {"pay <transaction_id>", (*shell).pay},
		"history":  {"history [page]", (*shell).history},
		"profile":  {"profile [edit -name .. -email .. -banjar ..]", (*shell).profile},
	}
}

// runShell starts a prompt loop. Screens change only through the navigator,
// so every command is subject to the same guards as the graphical client.
func runShell(cc *commandContext, args []string) error {
	if err := newFlagSet(cc, "shell").Parse(args); err != nil {
		return err
	}

	out := &syncWriter{w: cc.Out}
	shellCC := *cc
	shellCC.Out = out
	shellCC.Err = out

	return withApp(&shellCC, func(app *bootstrap.App) error {
		sh := &shell{cc: &shellCC, app: app, out: out, listed: make(map[billing.ID]billing.Bill)}
		cancel := app.Navigator.Subscribe(func(o nav.Outcome) {
			_ = writef(out, "-> %s\n", describeScreen(o))
		})
		defer cancel()
		defer app.Checkout.Leave()

		app.Navigator.Open(nav.PathRoot)
		return sh.loop(cc.In)
	})
}

func (sh *shell) loop(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	cmds := shellCommands()
	for {
		if err := writef(sh.out, "%s", shellPrompt); err != nil {
			return err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return writeln(sh.out)
		}
		if sh.cc.Ctx.Err() != nil {
			return sh.cc.Ctx.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		if name == "quit" || name == "exit" {
			return nil
		}
		cmd, ok := cmds[name]
		if !ok {
			_ = writef(sh.out, "Perintah tidak dikenal: %s (ketik help)\n", name)
			continue
		}
		if err := cmd.run(sh, fields[1:]); err != nil {
			_ = writef(sh.out, "Error: %s\n", describeError(err))
		}
	}
}

func describeScreen(o nav.Outcome) string {
	switch {
	case o.NotFound:
		return o.Path() + " (tidak ditemukan)"
	case o.Match.Route.Name != "":
		return o.Path() + " [" + o.Match.Route.Name + "]"
	default:
		return o.Path()
	}
}

func (sh *shell) help(_ []string) error {
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	for _, name := range sortedKeys(shellCommands()) {
		if err := writef(tw, "  %s\n", shellCommands()[name].usage); err != nil {
			return err
		}
	}
	if err := writef(tw, "  quit\n"); err != nil {
		return err
	}
	return tw.Flush()
}

func sortedKeys(m map[string]shellCommand) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (sh *shell) open(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: open <path>", errUsage)
	}
	out := sh.app.Navigator.Open(args[0])
	if out.Looped {
		return fmt.Errorf("navigasi ke %s berputar", args[0])
	}
	if !out.Rendered() && !out.NotFound {
		return writeln(sh.out, "Memuat sesi...")
	}
	return nil
}

func (sh *shell) where(_ []string) error {
	return writeln(sh.out, describeScreen(sh.app.Navigator.Screen()))
}

func (sh *shell) login(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: login <email> <password>", errUsage)
	}
	if err := sh.app.Session.Login(sh.cc.Ctx, args[0], args[1]); err != nil {
		return err
	}
	sh.app.Navigator.Open(nav.PathRoot)
	return nil
}

func (sh *shell) logout(_ []string) error {
	sh.app.Session.Logout(sh.cc.Ctx)
	sh.app.Cart.Clear()
	clear(sh.listed)
	sh.app.Navigator.Navigate(nav.PathLogin)
	return nil
}

func (sh *shell) bills(args []string) error {
	kramaID := ""
	if len(args) > 0 {
		kramaID = args[0]
	}
	bills, err := loadBills(sh.cc, sh.app, kramaID)
	if err != nil {
		return err
	}
	for _, b := range bills {
		sh.listed[b.ID] = b
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	if err := writeBillTable(tw, bills); err != nil {
		return err
	}
	return tw.Flush()
}

func (sh *shell) search(args []string) error {
	if _, err := enter(sh.app, nav.PathSearchKrama); err != nil {
		return err
	}
	found, err := sh.app.API.SearchKrama(sh.cc.Ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	if err := writeKramaTable(tw, found); err != nil {
		return err
	}
	return tw.Flush()
}

func (sh *shell) add(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: add <tagihan_id>", errUsage)
	}
	bill, ok := sh.listed[billing.ID(args[0])]
	if !ok {
		return fmt.Errorf("tagihan %s belum ditampilkan; jalankan bills terlebih dahulu", args[0])
	}
	return sh.app.Checkout.Apply(checkout.BillAction(bill))
}

func (sh *shell) remove(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: remove <tagihan_id>", errUsage)
	}
	sh.app.Cart.Remove(billing.ID(args[0]))
	return nil
}

func (sh *shell) cart(_ []string) error {
	items := sh.app.Cart.Items()
	if len(items) == 0 {
		return writeln(sh.out, "Keranjang kosong.")
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	for _, b := range items {
		if err := writef(tw, "%s\t%s\t%s\t%s\n", b.ID, b.OwnerName(), b.Period, b.Total.Rupiah()); err != nil {
			return err
		}
	}
	if err := writef(tw, "\t\tTotal\t%s\n", sh.app.Cart.Total().Rupiah()); err != nil {
		return err
	}
	return tw.Flush()
}

func (sh *shell) checkout(_ []string) error {
	if _, err := enter(sh.app, nav.PathCheckout); err != nil {
		return err
	}
	tx, err := sh.app.Checkout.Checkout(sh.cc.Ctx)
	if err != nil {
		return err
	}
	clear(sh.listed)
	return writef(sh.out, "Transaksi #%s sebesar %s dibuat.\n", tx.ID, tx.TotalAmount.Rupiah())
}

func (sh *shell) pay(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: pay <transaction_id>", errUsage)
	}
	txID := billing.ID(args[0])
	if sh.app.Navigator.Current() != nav.PaymentPath(txID.String()) {
		if _, err := enter(sh.app, nav.PaymentPath(txID.String())); err != nil {
			return err
		}
	}
	return sh.app.Checkout.ConfirmPayment(sh.cc.Ctx, txID)
}

func (sh *shell) history(args []string) error {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: history [page]", errUsage)
		}
		page = n
	}
	if _, err := enter(sh.app, nav.PathHistory); err != nil {
		return err
	}
	res, err := sh.app.API.MyTransactions(sh.cc.Ctx, page)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	if err := writeHistoryTable(tw, res); err != nil {
		return err
	}
	return tw.Flush()
}

// profile shows the resident profile, or saves changes with "profile edit".
// The signed-in identity is refreshed in place so the prompt keeps working
// under the new name and email.
func (sh *shell) profile(args []string) error {
	if len(args) == 0 || args[0] != "edit" {
		if len(args) > 0 {
			return fmt.Errorf("%w: profile [edit flags]", errUsage)
		}
		if _, err := enter(sh.app, nav.PathProfile); err != nil {
			return err
		}
		k, err := sh.app.API.MyProfile(sh.cc.Ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
		if err := writeKramaDetail(tw, k); err != nil {
			return err
		}
		return tw.Flush()
	}

	fs := newFlagSet(sh.cc, "profile edit")
	var form residentFlags
	form.register(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	return editProfile(sh.cc, sh.app, form)
}
