// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brewkeep/brewkeep/lib/clock"
)

// DefaultTimeout is how long a prompt may stay unanswered.
const DefaultTimeout = 10 * time.Minute

var (
	// ErrAborted is returned to a reader whose prompt was abandoned
	// by Abort or by context cancellation.
	ErrAborted = errors.New("interactive: prompt aborted")

	// ErrPromptTimeout is returned to a reader whose prompt was not
	// answered within the configured timeout.
	ErrPromptTimeout = errors.New("interactive: prompt timed out")

	// ErrNoStep is returned by AwaitInput when no step is running.
	ErrNoStep = errors.New("interactive: no step is running")
)

// State is the bridge's position in the step lifecycle.
type State int

const (
	StateIdle State = iota
	StateStepRunning
	StateAwaitingInput
)

func (state State) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateStepRunning:
		return "step-running"
	case StateAwaitingInput:
		return "awaiting-input"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// Snapshot is a point-in-time copy of the bridge state.
type Snapshot struct {
	State State
	// Prompt is the chunk that triggered the outstanding prompt.
	// Empty unless State is StateAwaitingInput.
	Prompt string
	// Queued is the number of readers that detected a prompt while
	// another was outstanding and are waiting their turn.
	Queued int
}

// Waiting reports whether a prompt is outstanding.
func (snapshot Snapshot) Waiting() bool {
	return snapshot.State == StateAwaitingInput
}

// Config holds the bridge's dependencies. The zero value is usable:
// real clock, DefaultTimeout, no logging, no change hook.
type Config struct {
	Clock clock.Clock

	// Timeout bounds how long one prompt may stay unanswered. Zero
	// selects DefaultTimeout; a negative value disables the timeout.
	Timeout time.Duration

	Logger *slog.Logger

	// OnChange is called after every state transition with the new
	// snapshot. It runs with the bridge's lock held, so it must not
	// block and must not call back into the Bridge.
	OnChange func(Snapshot)
}

// answer is the resolution of one prompt ticket.
type answer struct {
	input string
	err   error
}

// Bridge is the interactive input state machine for one executor.
type Bridge struct {
	clock    clock.Clock
	timeout  time.Duration
	logger   *slog.Logger
	onChange func(Snapshot)

	mutex sync.Mutex
	cond  *sync.Cond

	state  State
	prompt string
	stdin  io.WriteCloser

	// stdinClosed is set once the current step's stdin has been
	// closed by abort or timeout.
	stdinClosed bool

	// abortErr, once set by Abort or a prompt timeout, makes every
	// later prompt fail immediately and closes the stdin of every later
	// step. Cleared only by Reset.
	abortErr error

	// ticket identifies the outstanding prompt. Each AwaitInput that
	// becomes active takes the next ticket.
	ticket  uint64
	answers map[uint64]answer

	// pending counts readers inside AwaitInput, active or queued.
	pending int
}

// NewBridge creates a bridge in the Idle state.
func NewBridge(config Config) *Bridge {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	bridge := &Bridge{
		clock:    config.Clock,
		timeout:  config.Timeout,
		logger:   config.Logger,
		onChange: config.OnChange,
		answers:  make(map[uint64]answer),
	}
	bridge.cond = sync.NewCond(&bridge.mutex)
	return bridge
}

// Snapshot returns the current state.
func (bridge *Bridge) Snapshot() Snapshot {
	bridge.mutex.Lock()
	defer bridge.mutex.Unlock()
	return bridge.snapshotLocked()
}

// Reset clears an earlier Abort or prompt timeout. Call it when a new
// run starts.
func (bridge *Bridge) Reset() {
	bridge.mutex.Lock()
	defer bridge.mutex.Unlock()
	bridge.abortErr = nil
}

// Err returns ErrAborted or ErrPromptTimeout once the current run's
// input has been abandoned, and nil otherwise.
func (bridge *Bridge) Err() error {
	bridge.mutex.Lock()
	defer bridge.mutex.Unlock()
	return bridge.abortErr
}

// BeginStep moves to StepRunning with stdin as the destination for
// submitted input. After an abort stdin is closed at once, so the
// process reads EOF instead of waiting for input nobody will give.
func (bridge *Bridge) BeginStep(stdin io.WriteCloser) {
	bridge.mutex.Lock()
	bridge.state = StateStepRunning
	bridge.prompt = ""
	bridge.stdin = stdin
	bridge.stdinClosed = bridge.abortErr != nil
	bridge.changedLocked()
	aborted := bridge.abortErr != nil
	bridge.mutex.Unlock()

	if aborted && stdin != nil {
		stdin.Close()
	}
}

// EndStep returns to Idle. A prompt still outstanding at this point is
// abandoned.
func (bridge *Bridge) EndStep() {
	bridge.mutex.Lock()
	defer bridge.mutex.Unlock()

	if bridge.state == StateAwaitingInput {
		bridge.answers[bridge.ticket] = answer{err: ErrAborted}
	}
	bridge.state = StateIdle
	bridge.prompt = ""
	bridge.stdin = nil
	bridge.stdinClosed = false
	bridge.cond.Broadcast()
	bridge.changedLocked()
}

// AwaitInput registers prompt as the outstanding prompt and blocks
// until it is resolved. On Submit the input and a newline are written
// to the step's stdin and any write error is returned. On Abort,
// context cancellation, or timeout the step's stdin is closed and
// ErrAborted or ErrPromptTimeout is returned.
//
// If another prompt is outstanding, AwaitInput first waits for it to
// be resolved.
func (bridge *Bridge) AwaitInput(ctx context.Context, prompt string) error {
	stopWake := context.AfterFunc(ctx, bridge.wake)
	defer stopWake()

	bridge.mutex.Lock()
	if bridge.state == StateIdle {
		bridge.mutex.Unlock()
		return ErrNoStep
	}

	bridge.pending++
	defer func() {
		bridge.mutex.Lock()
		bridge.pending--
		bridge.cond.Broadcast()
		bridge.mutex.Unlock()
	}()

	for bridge.state == StateAwaitingInput && bridge.abortErr == nil && ctx.Err() == nil {
		bridge.cond.Wait()
	}
	if err := bridge.abortErr; err != nil {
		bridge.mutex.Unlock()
		return err
	}
	if bridge.state == StateIdle {
		bridge.mutex.Unlock()
		return ErrAborted
	}
	if ctx.Err() != nil {
		bridge.mutex.Unlock()
		return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}

	bridge.ticket++
	ticket := bridge.ticket
	bridge.state = StateAwaitingInput
	bridge.prompt = prompt
	stdin := bridge.stdin
	bridge.changedLocked()
	bridge.logger.Info("waiting for input", "prompt", prompt)

	var timer *clock.Timer
	if bridge.timeout > 0 {
		timer = bridge.clock.AfterFunc(bridge.timeout, func() { bridge.expire(ticket) })
	}

	for {
		if _, resolved := bridge.answers[ticket]; resolved {
			break
		}
		if ctx.Err() != nil {
			bridge.resolveLocked(ticket, answer{err: ErrAborted})
			break
		}
		bridge.cond.Wait()
	}
	result := bridge.answers[ticket]
	delete(bridge.answers, ticket)

	var closeStdin io.Closer
	if result.err != nil && !bridge.stdinClosed && bridge.stdin != nil {
		bridge.stdinClosed = true
		closeStdin = bridge.stdin
	}
	bridge.mutex.Unlock()

	if timer != nil {
		timer.Stop()
	}

	if result.err != nil {
		bridge.logger.Warn("prompt abandoned", "prompt", prompt, "error", result.err)
		if closeStdin != nil {
			closeStdin.Close()
		}
		return result.err
	}

	if stdin == nil {
		return ErrNoStep
	}
	if _, err := io.WriteString(stdin, result.input+"\n"); err != nil {
		return fmt.Errorf("writing input to process: %w", err)
	}
	return nil
}

// Submit resolves the outstanding prompt with text. Returns false,
// doing nothing, when no prompt is outstanding.
func (bridge *Bridge) Submit(text string) bool {
	bridge.mutex.Lock()
	defer bridge.mutex.Unlock()

	if bridge.state != StateAwaitingInput {
		return false
	}
	bridge.resolveLocked(bridge.ticket, answer{input: text})
	return true
}

// WaitResolved blocks while any prompt is outstanding or queued.
// Returns ctx.Err() if the context ends first.
func (bridge *Bridge) WaitResolved(ctx context.Context) error {
	stopWake := context.AfterFunc(ctx, bridge.wake)
	defer stopWake()

	bridge.mutex.Lock()
	defer bridge.mutex.Unlock()

	for bridge.state == StateAwaitingInput || bridge.pending > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		bridge.cond.Wait()
	}
	return nil
}

// Abort abandons the outstanding prompt, if any, and every prompt
// raised until Reset. The step's stdin is closed so the process reads
// EOF.
func (bridge *Bridge) Abort() {
	bridge.mutex.Lock()
	bridge.abortErr = ErrAborted
	if bridge.state == StateAwaitingInput {
		bridge.resolveLocked(bridge.ticket, answer{err: ErrAborted})
	}
	var closeStdin io.Closer
	if bridge.stdin != nil && !bridge.stdinClosed {
		bridge.stdinClosed = true
		closeStdin = bridge.stdin
	}
	bridge.cond.Broadcast()
	bridge.mutex.Unlock()

	if closeStdin != nil {
		closeStdin.Close()
	}
}

func (bridge *Bridge) expire(ticket uint64) {
	bridge.mutex.Lock()
	defer bridge.mutex.Unlock()

	if bridge.state != StateAwaitingInput || bridge.ticket != ticket {
		return
	}
	if bridge.abortErr == nil {
		bridge.abortErr = ErrPromptTimeout
	}
	bridge.resolveLocked(ticket, answer{err: ErrPromptTimeout})
}

// resolveLocked records the answer for ticket and leaves
// AwaitingInput. No-op if ticket already has an answer.
func (bridge *Bridge) resolveLocked(ticket uint64, result answer) {
	if _, exists := bridge.answers[ticket]; exists {
		return
	}
	bridge.answers[ticket] = result
	if bridge.ticket == ticket && bridge.state == StateAwaitingInput {
		bridge.state = StateStepRunning
		bridge.prompt = ""
		bridge.changedLocked()
	}
	bridge.cond.Broadcast()
}

func (bridge *Bridge) wake() {
	bridge.mutex.Lock()
	bridge.cond.Broadcast()
	bridge.mutex.Unlock()
}

func (bridge *Bridge) snapshotLocked() Snapshot {
	queued := bridge.pending
	if bridge.state == StateAwaitingInput && queued > 0 {
		queued--
	}
	return Snapshot{State: bridge.state, Prompt: bridge.prompt, Queued: queued}
}

func (bridge *Bridge) changedLocked() {
	if bridge.onChange != nil {
		bridge.onChange(bridge.snapshotLocked())
	}
}
