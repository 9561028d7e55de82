package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jmespath-community/go-jmespath"

	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/notify"
)

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}

// describeError prefers the user-facing message the stores attach.
func describeError(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if msg := apperrors.FirstFieldMessage(err); msg != "" && msg != appErr.Message {
			return apperrors.UserMessage(err, err.Error()) + " (" + msg + ")"
		}
		return apperrors.UserMessage(err, err.Error())
	}
	return err.Error()
}

func newFlagSet(cc *commandContext, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cc.Err)
	return fs
}

// outputFlags are shared by every command that prints data.
type outputFlags struct {
	JSON  bool
	Query string
}

func (o *outputFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&o.JSON, "json", false, "Print raw JSON instead of a table")
	fs.StringVar(&o.Query, "query", "", "JMESPath expression applied to the JSON output")
}

// render prints v as a table, or as JSON when -json or -query is set.
func (o outputFlags) render(w io.Writer, v any, table func(tw *tabwriter.Writer) error) error {
	if !o.JSON && o.Query == "" {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		if err := table(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
	return printJSON(w, v, o.Query)
}

func printJSON(w io.Writer, v any, query string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	if query != "" {
		doc, err = jmespath.Search(query, doc)
		if err != nil {
			return fmt.Errorf("%w: invalid -query: %w", errUsage, err)
		}
	}

	if s, ok := doc.(string); ok {
		return writeln(w, s)
	}
	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return writeln(w, string(pretty))
}

// noticePrinter shows notices on the error stream so stdout stays parseable.
func noticePrinter(w io.Writer) notify.Sink {
	return notify.SinkFunc(func(n notify.Notice) {
		_ = writef(w, "[%s] %s\n", n.Level, n.Message)
	})
}
