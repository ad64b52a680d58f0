// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package netcheck decides whether the network is reachable before a
// maintenance run. Every step of a run talks to remote package
// sources, so a run without connectivity is skipped outright.
//
// The probe is a TCP connect to a well-known address (a public DNS
// resolver's port 53 by default). It needs no privileges and no
// external binary.
package netcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Defaults match the config defaults.
const (
	DefaultAddress = "8.8.8.8:53"
	DefaultTimeout = 2 * time.Second
)

// ErrOffline wraps every failed probe.
var ErrOffline = errors.New("no internet connection")

// Checker probes connectivity.
type Checker struct {
	// Address is a host:port to connect to.
	Address string

	// Timeout bounds the connect; zero selects DefaultTimeout.
	Timeout time.Duration
}

// Check connects to Address and closes the connection. Returns an
// error wrapping ErrOffline when the connect fails.
func (c Checker) Check(ctx context.Context) error {
	address := c.Address
	if address == "" {
		address = DefaultAddress
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOffline, err)
	}
	conn.Close()
	return nil
}
