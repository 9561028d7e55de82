// Command krama is the terminal client for the Billing Krama backend. Every
// command goes through the same session, route guards and checkout flow a
// graphical front end would use.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/kramabill/billing-krama/config"
	"github.com/kramabill/billing-krama/internal/bootstrap"
)

type commandFn func(cc *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
}

// errUsage marks failures that should print usage and exit with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code) //nolint:forbidigo // CLI must propagate its status to the shell
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) < 1 {
		_ = printUsage(errOut)
		return 2
	}

	name := args[0]
	cmd, ok := commands()[name]
	if !ok {
		_ = writef(errOut, "unknown command %q\n\n", name)
		_ = printUsage(errOut)
		return 2
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		_ = writef(errOut, "load config: %v\n", err)
		return 1
	}
	logger := bootstrap.InitLogger(cfg.Logging, errOut)

	cc := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		In:     in,
		Out:    out,
		Err:    errOut,
	}
	if runErr := cmd.run(cc, args[1:]); runErr != nil {
		if errors.Is(runErr, flag.ErrHelp) {
			return 0
		}
		if errors.Is(runErr, errUsage) {
			_ = writef(errOut, "%v\n", runErr)
			return 2
		}
		logger.DebugContext(ctx, "command failed", "command", name, "error", runErr)
		_ = writef(errOut, "Error: %s\n", describeError(runErr))
		return 1
	}
	return 0
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and remember the session token",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create a resident account",
			run:         runRegister,
		},
		"logout": {
			name:        "logout",
			description: "End the session and forget the stored token",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Show the signed-in account",
			run:         runWhoAmI,
		},
		"bills": {
			name:        "bills",
			description: "List unpaid bills (yours, or another resident's with -krama)",
			run:         runBills,
		},
		"search": {
			name:        "search",
			description: "Find residents by name or NIK",
			run:         runSearch,
		},
		"pay": {
			name:        "pay",
			description: "Check out unpaid bills as one transaction and optionally confirm it",
			run:         runPay,
		},
		"confirm": {
			name:        "confirm",
			description: "Confirm payment of a pending transaction",
			run:         runConfirm,
		},
		"history": {
			name:        "history",
			description: "Show payment history",
			run:         runHistory,
		},
		"profile": {
			name:        "profile",
			description: "Show your resident profile, or change it with `profile edit`",
			run: subcommands("profile", map[string]commandFn{
				"show": runProfile,
				"edit": runProfileEdit,
			}, "show"),
		},
		"banjar": {
			name:        "banjar",
			description: "List banjar (wards) and their IDs",
			run:         runBanjarList,
		},
		"dashboard": {
			name:        "dashboard",
			description: "Show the dashboard for your role",
			run:         runDashboard,
		},
		"krama": {
			name:        "krama",
			description: "Manage residents: list, show, add, edit, delete, options (admin)",
			run: subcommands("krama", map[string]commandFn{
				"list":    runKramaList,
				"show":    runKramaShow,
				"add":     runKramaAdd,
				"edit":    runKramaEdit,
				"delete":  runKramaDelete,
				"options": runKramaOptions,
			}, "list"),
		},
		"report": {
			name:        "report",
			description: "Bill report: list, create, validate, export (admin)",
			run: subcommands("report", map[string]commandFn{
				"list":     runReportList,
				"create":   runReportCreate,
				"validate": runReportValidate,
				"export":   runReportExport,
			}, "list"),
		},
		"config": {
			name:        "config",
			description: "Show the resolved backend and storage settings",
			run:         runShowConfig,
		},
		"shell": {
			name:        "shell",
			description: "Interactive session driven through the screen router",
			run:         runShell,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: krama <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// subcommands routes "krama <group> <sub> ..." to a handler. An empty or
// flag-first argument list runs def.
func subcommands(group string, subs map[string]commandFn, def string) commandFn {
	return func(cc *commandContext, args []string) error {
		name := def
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			name, args = args[0], args[1:]
		}
		run, ok := subs[name]
		if !ok {
			names := make([]string, 0, len(subs))
			for n := range subs {
				names = append(names, n)
			}
			sort.Strings(names)
			return fmt.Errorf("%w: %s %s: want one of %s", errUsage, group, name, strings.Join(names, ", "))
		}
		return run(cc, args)
	}
}

// splitID takes a leading positional ID so "show 3 -json" and "show -json 3"
// both work.
func splitID(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}
