// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/logsink"
)

type logsParams struct {
	cli.ConfigFlag
	Lines    int    `flag:"lines,n" default:"50" desc:"number of trailing lines to print (0 prints everything)"`
	Archives bool   `flag:"archives" desc:"list the rotated archives instead of printing the log"`
	Archive  string `flag:"archive" desc:"print a rotated archive by file name"`
}

// LogsCommand returns the "logs" command, which reads the durable run
// log and its rotated archives.
func LogsCommand() *cli.Command {
	var params logsParams

	return &cli.Command{
		Name:    "logs",
		Summary: "Print the run log",
		Description: `The run log records every output line of every job, timestamped.
It rotates at log.max_bytes into compressed archives next to it.`,
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("logs takes no arguments")
			}
			if params.Lines < 0 {
				return cli.Validation("--lines must not be negative")
			}
			if params.Archives && params.Archive != "" {
				return cli.Validation("--archives and --archive are mutually exclusive")
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			path := cfg.Log.File

			switch {
			case params.Archives:
				return listArchives(os.Stdout, path)
			case params.Archive != "":
				return printArchive(os.Stdout, path, params.Archive, params.Lines)
			}

			file, err := os.Open(path)
			if errors.Is(err, os.ErrNotExist) {
				return cli.NotFound("no run log yet at %s", path)
			}
			if err != nil {
				return err
			}
			defer file.Close()
			return printTail(os.Stdout, file, params.Lines)
		},
	}
}

func listArchives(w io.Writer, path string) error {
	archives, err := logsink.Archives(path)
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		fmt.Fprintln(w, "No rotated archives.")
		return nil
	}
	for _, archive := range archives {
		info, err := os.Stat(archive)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%d bytes\t%s\n", filepath.Base(archive), info.Size(), info.ModTime().Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func printArchive(w io.Writer, path, name string, lines int) error {
	archives, err := logsink.Archives(path)
	if err != nil {
		return err
	}
	for _, archive := range archives {
		if filepath.Base(archive) != filepath.Base(name) {
			continue
		}
		reader, err := logsink.OpenArchive(archive)
		if err != nil {
			return err
		}
		defer reader.Close()
		return printTail(w, reader, lines)
	}
	return cli.NotFound("no archive named %q next to %s (see 'brewkeep logs --archives')", name, path)
}

// printTail copies the last n lines of r to w, or all of it when n is
// zero.
func printTail(w io.Writer, r io.Reader, n int) error {
	if n == 0 {
		_, err := io.Copy(w, r)
		return err
	}
	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	start := 0
	if count > n {
		start = count - n
	}
	for i := start; i < count; i++ {
		fmt.Fprintln(w, ring[i%n])
	}
	return nil
}
