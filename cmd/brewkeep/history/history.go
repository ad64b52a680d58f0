// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package history implements the commands that read what earlier jobs
// left behind: the run archive and the run log.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/codec"
	"github.com/brewkeep/brewkeep/lib/config"
	runhistory "github.com/brewkeep/brewkeep/lib/history"
)

// Command returns the "history" command group.
func Command() *cli.Command {
	list := listCommand()
	return &cli.Command{
		Name:    "history",
		Summary: "List and inspect archived jobs",
		Description: `Every finished job is archived with its steps and output when
history.enabled is set. Without a subcommand, the newest jobs are listed.`,
		Subcommands: []*cli.Command{
			list,
			showCommand(),
		},
		Params: list.Params,
		Run:    list.Run,
		Examples: []cli.Example{
			{Description: "List the last five jobs", Command: "brewkeep history -n 5"},
			{Description: "Show a job by ID prefix", Command: "brewkeep history show 3f2a"},
		},
	}
}

// openStore opens the configured archive.
func openStore(cfg *config.Config) (*runhistory.Store, error) {
	if !cfg.History.Enabled {
		return nil, cli.Validation("history is disabled (history.enabled in the configuration)")
	}
	if _, err := os.Stat(cfg.History.Database); errors.Is(err, os.ErrNotExist) {
		return nil, cli.NotFound("no history yet at %s", cfg.History.Database)
	}
	return runhistory.Open(runhistory.Config{Path: cfg.History.Database, Keep: cfg.History.Keep})
}

type listParams struct {
	cli.ConfigFlag
	cli.JSONOutput
	Limit int    `flag:"limit,n" default:"20" desc:"number of jobs to list"`
	Kind  string `flag:"kind" desc:"only list jobs of this kind (run, doctor, outdated, ...)"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List the newest archived jobs",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unknown history command %q (want list or show)", args[0])
			}
			if params.Limit <= 0 {
				return cli.Validation("--limit must be positive")
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			limit := params.Limit
			if params.Kind != "" {
				// Filtering happens after the query.
				limit = cfg.History.Keep
			}
			records, err := store.List(ctx, limit)
			if err != nil {
				return err
			}
			records = filterKind(records, params.Kind, params.Limit)
			if done, err := params.EmitJSON(records); done {
				return err
			}
			printRecords(os.Stdout, records)
			return nil
		},
	}
}

func filterKind(records []runhistory.Record, kind string, limit int) []runhistory.Record {
	if kind == "" {
		return records
	}
	var kept []runhistory.Record
	for _, record := range records {
		if record.Kind == kind {
			kept = append(kept, record)
			if len(kept) == limit {
				break
			}
		}
	}
	return kept
}

func printRecords(w io.Writer, records []runhistory.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No jobs archived.")
		return
	}
	table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(table, "ID\tKIND\tSTARTED\tDURATION\tRESULT\tSUMMARY")
	for _, record := range records {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\n",
			record.ID.String()[:8],
			record.Kind,
			record.StartedAt.Local().Format("2006-01-02 15:04"),
			record.Duration().Round(time.Second),
			outcome(record),
			firstLine(record.Summary),
		)
	}
	table.Flush()
}

func outcome(record runhistory.Record) string {
	switch {
	case record.Cancelled:
		return "cancelled"
	case record.Success:
		return "ok"
	}
	return "failed"
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}

type showParams struct {
	cli.ConfigFlag
	cli.JSONOutput
	Raw      bool `flag:"raw" desc:"print the archived payload in CBOR diagnostic notation"`
	NoOutput  bool `flag:"no-output" desc:"leave out the job's output lines"`
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show an archived job's steps and output",
		Usage:   "brewkeep history show <id-prefix> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: brewkeep history show <id-prefix>")
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if params.Raw {
				raw, err := store.Raw(ctx, args[0])
				if err != nil {
					return lookupError(args[0], err)
				}
				notation, err := codec.Diagnose(raw)
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, notation)
				return nil
			}

			record, err := store.Get(ctx, args[0])
			if err != nil {
				return lookupError(args[0], err)
			}
			if params.NoOutput {
				record.Output = nil
			}
			if done, err := params.EmitJSON(record); done {
				return err
			}
			printRecord(os.Stdout, record)
			return nil
		},
	}
}

func lookupError(prefix string, err error) error {
	switch {
	case errors.Is(err, runhistory.ErrNotFound):
		return cli.NotFound("no archived job matches %q", prefix)
	case errors.Is(err, runhistory.ErrAmbiguous):
		return cli.Validation("%q matches more than one job; give more of the ID", prefix)
	}
	return err
}

func printRecord(w io.Writer, record *runhistory.Record) {
	fmt.Fprintf(w, "Job %s (%s)\n", record.ID, record.Kind)
	fmt.Fprintf(w, "  started:  %s\n", record.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  duration: %s\n", record.Duration().Round(100*time.Millisecond))
	fmt.Fprintf(w, "  result:   %s\n", outcome(*record))
	if record.Summary != "" {
		fmt.Fprintf(w, "  summary:  %s\n", strings.ReplaceAll(record.Summary, "\n", "\n            "))
	}
	if !record.OutputDigest.IsZero() {
		fmt.Fprintf(w, "  output:   %d line(s), digest %s\n", record.OutputLines, record.OutputDigest.Short())
	}

	if len(record.Steps) > 0 {
		fmt.Fprintln(w)
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		fmt.Fprintln(table, "STEP\tEXIT\tDURATION\tNOTE")
		for _, step := range record.Steps {
			note := step.Error
			if step.Optional && (step.ExitCode != 0 || step.Error != "") {
				note = strings.TrimSpace("optional " + note)
			}
			if step.Skipped {
				note = "skipped"
			}
			fmt.Fprintf(table, "%s\t%d\t%s\t%s\n",
				step.Label, step.ExitCode, time.Duration(step.DurationMS)*time.Millisecond, note)
		}
		table.Flush()
	}

	if len(record.Output) > 0 {
		fmt.Fprintln(w)
		for _, line := range record.Output {
			fmt.Fprintln(w, line.Text)
		}
	}
}
