// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/brewkeep/brewkeep/lib/codec"
	"github.com/brewkeep/brewkeep/lib/parse"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for a response. The
// outdated and services actions run brew before answering.
const responseReadTimeout = 2 * time.Minute

// maxResponseSize bounds one response. An output response can carry
// the whole retained buffer.
const maxResponseSize = 16 * 1024 * 1024

// Error is returned by Call when the daemon answers ok=false.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("daemon error on %q: %s", e.Action, e.Message)
}

// Client sends requests to a daemon's control socket. Each call opens
// its own connection.
type Client struct {
	socketPath string
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends action with fields and decodes the response data into
// result. fields may be nil or any value that encodes to a CBOR map;
// it must not carry an "action" key. A daemon-side failure is returned
// as *Error.
func (c *Client) Call(ctx context.Context, action string, fields any, result any) error {
	request, err := buildRequest(action, fields)
	if err != nil {
		return err
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &Error{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// buildRequest merges the action into fields by round-tripping fields
// through a CBOR map.
func buildRequest(action string, fields any) (map[string]any, error) {
	request := make(map[string]any)
	if fields != nil {
		encoded, err := codec.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encoding %q request: %w", action, err)
		}
		if err := codec.Unmarshal(encoded, &request); err != nil {
			return nil, fmt.Errorf("encoding %q request: fields are not a map: %w", action, err)
		}
	}
	request["action"] = action
	return request, nil
}

func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	deadline := time.Now().Add(responseReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}

// State returns the daemon's executor state.
func (c *Client) State(ctx context.Context) (pipeline.State, error) {
	var state pipeline.State
	err := c.Call(ctx, ActionState, nil, &state)
	return state, err
}

// Start asks the daemon to start a job and returns the state just
// after it started.
func (c *Client) Start(ctx context.Context, request StartRequest) (pipeline.State, error) {
	var state pipeline.State
	err := c.Call(ctx, ActionStart, request, &state)
	return state, err
}

// SubmitInput answers the outstanding prompt. It returns false when no
// prompt was waiting.
func (c *Client) SubmitInput(ctx context.Context, text string) (bool, error) {
	var response InputResponse
	err := c.Call(ctx, ActionInput, InputRequest{Text: text}, &response)
	return response.Accepted, err
}

// Output returns lines with Seq >= since.
func (c *Client) Output(ctx context.Context, since uint64) (OutputResponse, error) {
	var response OutputResponse
	err := c.Call(ctx, ActionOutput, OutputRequest{Since: since}, &response)
	return response, err
}

// Cancel stops the running job at its next step boundary.
func (c *Client) Cancel(ctx context.Context) (bool, error) {
	var response CancelResponse
	err := c.Call(ctx, ActionCancel, nil, &response)
	return response.Cancelled, err
}

// Outdated lists outdated packages.
func (c *Client) Outdated(ctx context.Context) ([]parse.OutdatedPackage, error) {
	var response OutdatedResponse
	err := c.Call(ctx, ActionOutdated, nil, &response)
	return response.Packages, err
}

// Services lists registered services.
func (c *Client) Services(ctx context.Context) ([]parse.Service, error) {
	var response ServicesResponse
	err := c.Call(ctx, ActionServices, nil, &response)
	return response.Services, err
}

// Last returns the most recent finished result, or nil.
func (c *Client) Last(ctx context.Context) (*pipeline.Result, error) {
	var response LastResponse
	if err := c.Call(ctx, ActionLast, nil, &response); err != nil {
		return nil, err
	}
	return response.Result, nil
}
