package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/zap"

	"gorm-multistatement/internal/bootstrap"
	"gorm-multistatement/internal/harness"
	"gorm-multistatement/internal/probe"
)

// errScenariosFailed is returned when the run completed with failures.
var errScenariosFailed = errors.New("one or more scenarios failed")

// openFunc connects the harness the probe runs against.
type openFunc func(ctx context.Context) (*harness.Harness, *zap.Logger, error)

func newRootCommand(out io.Writer, open openFunc) *ffcli.Command {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	var (
		asJSON  = fs.Bool("json", false, "print the report as JSON")
		timeout = fs.Duration("timeout", 30*time.Second, "bound for the whole run")
	)

	return &ffcli.Command{
		Name:       "probe",
		ShortUsage: "probe [flags] [<subcommand>]",
		ShortHelp:  "Run the multi-statement scenarios against the configured database.",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix("PROBE")},
		Subcommands: []*ffcli.Command{
			listCommand(out),
		},
		Exec: func(ctx context.Context, _ []string) error {
			ctx, cancel := context.WithTimeout(ctx, *timeout)
			defer cancel()
			return runProbe(ctx, out, open, *asJSON)
		},
	}
}

func listCommand(out io.Writer) *ffcli.Command {
	return &ffcli.Command{
		Name:       "list",
		ShortUsage: "probe list",
		ShortHelp:  "Print the scenarios and their SQL.",
		Exec: func(context.Context, []string) error {
			for _, sc := range probe.Scenarios() {
				name := sc.Name
				if sc.Mode != "" {
					name += " (" + string(sc.Mode) + ")"
				}
				fmt.Fprintf(out, "%s via %s:\n%s\n", name, sc.Pathway, strings.TrimSpace(sc.SQL))
			}
			return nil
		},
	}
}

func runProbe(ctx context.Context, out io.Writer, open openFunc, asJSON bool) (err error) {
	h, log, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, h.Close())
		_ = bootstrap.SyncLogger(log)
	}()

	report, err := probe.NewRunner(h, log).Run(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		printReport(out, report)
	}

	if !report.OK() {
		return errScenariosFailed
	}
	return nil
}

func printReport(out io.Writer, report *probe.Report) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tPATHWAY\tRESULT\tELAPSED")
	for _, o := range report.Outcomes {
		result := "ok"
		if !o.Passed {
			result = "FAIL: " + o.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Name, o.Pathway, result, o.Elapsed.Round(time.Microsecond))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "%d passed, %d failed in %s\n", report.Passed, report.Failed, report.Elapsed.Round(time.Millisecond))
}
