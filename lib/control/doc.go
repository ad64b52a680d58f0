// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package control is the daemon's local control surface: a CBOR
// request-response protocol on a Unix socket.
//
// Each connection carries exactly one request and one response. The
// request is a CBOR map with an "action" field naming the handler and
// action-specific fields beside it. The response is a [Response]
// envelope whose Data field holds the handler's result.
//
// The actions mirror the executor's operations: start a run or
// diagnostic, read state, read output since a sequence number, answer
// a prompt, cancel, and list outdated packages or services. The CLI's
// status, input, tail, and cancel commands are clients of this
// socket, so a long-running daemon and a short-lived terminal can
// share one run.
//
// The socket file is created with mode 0600. Anyone who can connect
// can answer password prompts, so the socket must live in a directory
// only the user can reach.
package control
