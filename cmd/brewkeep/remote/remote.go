// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote implements the commands that talk to a running
// daemon through its control socket: status, input, tail, cancel and
// attach.
package remote

import (
	"errors"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/control"
)

// Connection selects the daemon's socket: --socket, or control.socket
// from the configuration.
type Connection struct {
	cli.ConfigFlag
	Socket string
}

// AddFlags registers --config and --socket.
func (connection *Connection) AddFlags(flagSet *pflag.FlagSet) {
	connection.ConfigFlag.AddFlags(flagSet)
	flagSet.StringVar(&connection.Socket, "socket", "", "daemon control socket (default control.socket from the configuration)")
}

// Client returns a client for the selected socket.
func (connection *Connection) Client() (*control.Client, string, error) {
	socket := connection.Socket
	if socket == "" {
		cfg, err := connection.Load()
		if err != nil {
			return nil, "", err
		}
		socket = cfg.Control.Socket
	}
	return control.NewClient(socket), socket, nil
}

// unreachable categorizes a failed call.
func unreachable(socket string, err error) error {
	var daemon *control.Error
	if errors.As(err, &daemon) {
		return cli.Internal("%w", err)
	}
	if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
		return cli.Transient("the daemon is not running (no socket at %s); start it with 'brewkeep daemon'", socket)
	}
	return cli.Transient("%w", err)
}
