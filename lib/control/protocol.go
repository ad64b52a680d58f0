// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/parse"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

// Action names.
const (
	ActionState    = "state"
	ActionStart    = "start"
	ActionInput    = "input"
	ActionOutput   = "output"
	ActionCancel   = "cancel"
	ActionOutdated = "outdated"
	ActionServices = "services"
	ActionLast     = "last"
)

// StartRequest asks the daemon to start a job. Preferences nil means
// the daemon's configured preferences.
type StartRequest struct {
	Kind        pipeline.Kind       `cbor:"kind"`
	Preferences *config.Preferences `cbor:"preferences,omitempty"`
	Service     string              `cbor:"service,omitempty"`

	// Verb is the service action. The field is not called "action"
	// because that key routes the request.
	Verb     string   `cbor:"verb,omitempty"`
	Packages []string `cbor:"packages,omitempty"`
}

// InputRequest answers the outstanding prompt. Text is written to the
// child's stdin and never logged.
type InputRequest struct {
	Text string `cbor:"text"`
}

// InputResponse reports whether a prompt was waiting.
type InputResponse struct {
	Accepted bool `cbor:"accepted"`
}

// OutputRequest asks for output lines with Seq >= Since.
type OutputRequest struct {
	Since uint64 `cbor:"since"`
}

// OutputResponse carries output lines and the sequence number to ask
// for next.
type OutputResponse struct {
	Lines   []output.Line `cbor:"lines"`
	Next    uint64        `cbor:"next"`
	Running bool          `cbor:"running"`
}

// CancelResponse reports whether a job was running.
type CancelResponse struct {
	Cancelled bool `cbor:"cancelled"`
}

// OutdatedResponse lists outdated packages.
type OutdatedResponse struct {
	Packages []parse.OutdatedPackage `cbor:"packages"`
}

// ServicesResponse lists registered services.
type ServicesResponse struct {
	Services []parse.Service `cbor:"services"`
}

// LastResponse carries the most recent finished result, without its
// output. Found is false before the first job finishes.
type LastResponse struct {
	Found  bool             `cbor:"found"`
	Result *pipeline.Result `cbor:"result,omitempty"`
}
