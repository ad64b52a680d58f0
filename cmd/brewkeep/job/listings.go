// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/parse"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/tui"
)

type listingParams struct {
	jobParams
	Match string `flag:"match,m" desc:"fuzzy filter on package or service names"`
}

// OutdatedCommand returns the "outdated" command.
func OutdatedCommand() *cli.Command {
	var params listingParams

	return &cli.Command{
		Name:    "outdated",
		Summary: "List packages with newer versions available",
		Description: `Run "brew outdated --verbose" and list each package with its installed
and latest version. --match keeps the names that fuzzy-match a pattern,
best match first.`,
		Examples: []cli.Example{
			{Description: "Show outdated Python packages", Command: "brewkeep outdated --match py"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("outdated takes no arguments, got %q", args)
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			result, err := params.execute(ctx, cfg, execution{
				request: pipeline.Request{Kind: pipeline.KindOutdated, Preferences: cfg.Preferences},
				quiet:   true,
			}, logger)
			if err != nil {
				return params.report(result, err)
			}
			packages := matchNames(result.Outdated, func(entry parse.OutdatedPackage) string { return entry.Name }, params.Match)
			if done, err := params.EmitJSON(packages); done {
				return err
			}
			printOutdated(os.Stdout, packages)
			return nil
		},
	}
}

// ServicesCommand returns the "services" command group.
func ServicesCommand() *cli.Command {
	var params listingParams

	return &cli.Command{
		Name:    "services",
		Summary: "List Homebrew services, or start, stop and restart one",
		Description: `Without a subcommand, run "brew services list" and show each registered
service with its status. The subcommands run "brew services <action>" for
one service.`,
		Usage: "brewkeep services [start|stop|restart <name>] [flags]",
		Subcommands: []*cli.Command{
			serviceActionCommand("start", "Start a service and register it to launch at login"),
			serviceActionCommand("stop", "Stop a service and unregister it"),
			serviceActionCommand("restart", "Restart a service"),
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unknown services action %q (want start, stop or restart)", args[0])
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			result, err := params.execute(ctx, cfg, execution{
				request: pipeline.Request{Kind: pipeline.KindServices, Preferences: cfg.Preferences},
				quiet:   true,
			}, logger)
			if err != nil {
				return params.report(result, err)
			}
			services := matchNames(result.Services, func(service parse.Service) string { return service.Name }, params.Match)
			if done, err := params.EmitJSON(services); done {
				return err
			}
			printServices(os.Stdout, services)
			return nil
		},
	}
}

func serviceActionCommand(action, summary string) *cli.Command {
	var params jobParams

	return &cli.Command{
		Name:    action,
		Summary: summary,
		Usage:   fmt.Sprintf("brewkeep services %s <name> [flags]", action),
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: brewkeep services %s <name>", action)
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			result, err := params.execute(ctx, cfg, execution{
				request: pipeline.Request{
					Kind:        pipeline.KindService,
					Service:     args[0],
					Action:      action,
					Preferences: cfg.Preferences,
				},
			}, logger)
			return params.report(result, err)
		},
	}
}

// matchNames keeps the items whose name fuzzy-matches pattern, best
// match first. An empty pattern keeps everything in order.
func matchNames[T any](items []T, name func(T) string, pattern string) []T {
	if pattern == "" {
		return items
	}
	names := make([]string, len(items))
	for index, item := range items {
		names[index] = name(item)
	}
	matched := make([]T, 0, len(items))
	for _, index := range tui.FuzzyFilter(names, pattern) {
		matched = append(matched, items[index])
	}
	return matched
}

func printOutdated(w io.Writer, packages []parse.OutdatedPackage) {
	if len(packages) == 0 {
		fmt.Fprintln(w, "Everything is up to date.")
		return
	}
	table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(table, "PACKAGE\tINSTALLED\tLATEST")
	for _, entry := range packages {
		fmt.Fprintf(table, "%s\t%s\t%s\n", entry.Name, entry.Current, entry.Latest)
	}
	table.Flush()
}

func printServices(w io.Writer, services []parse.Service) {
	if len(services) == 0 {
		fmt.Fprintln(w, "No services registered.")
		return
	}
	table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(table, "SERVICE\tSTATUS")
	for _, service := range services {
		fmt.Fprintf(table, "%s\t%s\n", service.Name, service.Status)
	}
	table.Flush()
}
