// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Command brewkeep keeps a Homebrew installation up to date.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/commands"
	"github.com/brewkeep/brewkeep/lib/process"
)

func main() {
	process.Exit(run())
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The first interrupt cancels ctx and commands wind down at the
	// next step boundary. Restoring default handling lets a second
	// interrupt kill the process.
	go func() {
		<-ctx.Done()
		stop()
	}()

	return commands.Root().Execute(ctx, os.Args[1:])
}
