// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"

	"github.com/brewkeep/brewkeep/lib/codec"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/parse"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

// Executor is the part of *pipeline.Executor the socket exposes.
type Executor interface {
	Start(ctx context.Context, request pipeline.Request) error
	State() pipeline.State
	SubmitInput(text string) bool
	Cancel() bool
	OutputSince(seq uint64) []output.Line
	Outdated(ctx context.Context) ([]parse.OutdatedPackage, error)
	Services(ctx context.Context) ([]parse.Service, error)
	Last() *pipeline.Result
}

// Register installs a handler for every action on server. Jobs
// started without preferences use preferences.
func Register(server *Server, executor Executor, preferences config.Preferences) {
	server.Handle(ActionState, func(ctx context.Context, raw []byte) (any, error) {
		return executor.State(), nil
	})

	server.Handle(ActionStart, func(ctx context.Context, raw []byte) (any, error) {
		var request StartRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("decoding start request: %w", err)
		}
		effective := preferences
		if request.Preferences != nil {
			effective = *request.Preferences
		}
		err := executor.Start(ctx, pipeline.Request{
			Kind:        request.Kind,
			Preferences: effective,
			Service:     request.Service,
			Action:      request.Verb,
			Packages:    request.Packages,
			Trigger:     "socket",
		})
		if err != nil {
			return nil, err
		}
		return executor.State(), nil
	})

	server.Handle(ActionInput, func(ctx context.Context, raw []byte) (any, error) {
		var request InputRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("decoding input request: %w", err)
		}
		return InputResponse{Accepted: executor.SubmitInput(request.Text)}, nil
	})

	server.Handle(ActionOutput, func(ctx context.Context, raw []byte) (any, error) {
		var request OutputRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("decoding output request: %w", err)
		}
		lines := executor.OutputSince(request.Since)
		next := request.Since
		if len(lines) > 0 {
			next = lines[len(lines)-1].Seq + 1
		}
		return OutputResponse{Lines: lines, Next: next, Running: executor.State().Running}, nil
	})

	server.Handle(ActionCancel, func(ctx context.Context, raw []byte) (any, error) {
		return CancelResponse{Cancelled: executor.Cancel()}, nil
	})

	server.Handle(ActionOutdated, func(ctx context.Context, raw []byte) (any, error) {
		packages, err := executor.Outdated(ctx)
		if err != nil {
			return nil, err
		}
		return OutdatedResponse{Packages: packages}, nil
	})

	server.Handle(ActionServices, func(ctx context.Context, raw []byte) (any, error) {
		services, err := executor.Services(ctx)
		if err != nil {
			return nil, err
		}
		return ServicesResponse{Services: services}, nil
	})

	server.Handle(ActionLast, func(ctx context.Context, raw []byte) (any, error) {
		last := executor.Last()
		if last == nil {
			return LastResponse{}, nil
		}
		summary := *last
		summary.Output = nil
		return LastResponse{Found: true, Result: &summary}, nil
	})
}
