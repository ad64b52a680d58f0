// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package runview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/tui"
)

// Defaults for [Options].
const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultMaxLines     = 5000
)

// sourceTimeout bounds one call to the source.
const sourceTimeout = 5 * time.Second

// noticeFadeDelay is how long an action notice stays in the status bar.
const noticeFadeDelay = 3 * time.Second

// Menu actions.
const (
	actionCancel = "cancel"
	actionClear  = "clear"
	actionFollow = "follow"
	actionQuit   = "quit"
)

// focus identifies what receives key presses.
type focus int

const (
	focusOutput focus = iota
	focusPrompt
	focusMenu
)

// Options configures a [Model].
type Options struct {
	// PollInterval is the delay between polls of the source.
	PollInterval time.Duration

	// MaxLines bounds the output kept by the view.
	MaxLines int

	// ExitWhenDone quits once the source reports a finished run.
	ExitWhenDone bool

	Theme tui.Theme
	Keys  KeyMap

	// Now is the clock used for the heat animation.
	Now func() time.Time
}

type pollTickMsg struct{}

type snapshotMsg struct {
	snapshot Snapshot
	err      error

	// generation is the number of answers submitted when the poll was
	// issued. Older polls may still show an answered prompt.
	generation int
}

type inputResultMsg struct {
	accepted bool
	err      error
}

type cancelResultMsg struct {
	cancelled bool
	err       error
}

type heatTickMsg struct{}

type noticeFadeMsg struct{ id int }

// Model is the bubbletea model of the run view.
type Model struct {
	source  Source
	options Options
	theme   tui.Theme
	keys    KeyMap

	width  int
	height int
	ready  bool

	state   pipeline.State
	runID   string
	lines   []output.Line
	next    uint64
	polling bool
	pollErr error
	sawRun  bool

	viewport  viewport.Model
	following bool

	heat        *tui.HeatTracker[uint64]
	heatTicking bool

	focus      focus
	modal      tui.PromptModal
	dismissed  string
	submitting bool
	submitted  int
	menu       tui.Menu

	notice      string
	noticeLevel slog.Level
	noticeID    int

	quitting bool
}

// NewModel creates a run view reading from source.
func NewModel(source Source, options Options) Model {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.MaxLines <= 0 {
		options.MaxLines = DefaultMaxLines
	}
	if options.Theme == (tui.Theme{}) {
		options.Theme = tui.DefaultTheme
	}
	if options.Keys.Quit.Keys() == nil {
		options.Keys = DefaultKeyMap
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return Model{
		source:    source,
		options:   options,
		theme:     options.Theme,
		keys:      options.Keys,
		viewport:  viewport.New(0, 0),
		following: true,
		heat:      tui.NewHeatTracker[uint64](),
	}
}

// State returns the last executor state the view received.
func (model Model) State() pipeline.State {
	return model.state
}

// Init starts polling the source.
func (model Model) Init() tea.Cmd {
	return func() tea.Msg { return pollTickMsg{} }
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width, model.height = message.Width, message.Height
		model.ready = true
		model.layout()
		return model, nil

	case pollTickMsg:
		if model.polling || model.quitting {
			return model, nil
		}
		model.polling = true
		return model, model.poll()

	case snapshotMsg:
		return model.handleSnapshot(message)

	case inputResultMsg:
		model.submitting = false
		model.submitted++
		switch {
		case message.err != nil:
			return model, model.setNotice("Sending input failed: "+message.err.Error(), slog.LevelError)
		case !message.accepted:
			return model, model.setNotice("No prompt is waiting for input.", slog.LevelWarn)
		}
		return model, nil

	case cancelResultMsg:
		switch {
		case message.err != nil:
			return model, model.setNotice("Cancel failed: "+message.err.Error(), slog.LevelError)
		case !message.cancelled:
			return model, model.setNotice("Nothing is running.", slog.LevelWarn)
		}
		return model, model.setNotice("Cancelling after the current step...", slog.LevelInfo)

	case heatTickMsg:
		if model.heat.HasHot(model.options.Now()) {
			model.refreshContent()
			return model, heatTick()
		}
		model.heatTicking = false
		model.refreshContent()
		return model, nil

	case logRecordMsg:
		return model, model.setNotice(message.Summary, message.Level)

	case noticeFadeMsg:
		if message.id == model.noticeID {
			model.notice = ""
		}
		return model, nil

	case tea.MouseMsg:
		if model.focus != focusOutput {
			return model, nil
		}
		var command tea.Cmd
		model.viewport, command = model.viewport.Update(message)
		model.following = model.viewport.AtBottom()
		return model, command

	case tea.KeyMsg:
		return model.handleKey(message)
	}

	if model.focus == focusPrompt {
		return model, model.modal.Update(message)
	}
	return model, nil
}

func (model Model) poll() tea.Cmd {
	source, since, generation := model.source, model.next, model.submitted
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sourceTimeout)
		defer cancel()
		snapshot, err := source.Poll(ctx, since)
		return snapshotMsg{snapshot: snapshot, err: err, generation: generation}
	}
}

func (model Model) schedulePoll() tea.Cmd {
	return tea.Tick(model.options.PollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func heatTick() tea.Cmd {
	return tea.Tick(tui.HeatTickInterval, func(time.Time) tea.Msg {
		return heatTickMsg{}
	})
}

func (model Model) handleSnapshot(message snapshotMsg) (tea.Model, tea.Cmd) {
	model.polling = false
	if message.err != nil {
		model.pollErr = message.err
		return model, model.schedulePoll()
	}
	model.pollErr = nil

	snapshot := message.snapshot
	if snapshot.State.RunID != "" && snapshot.State.RunID != model.runID {
		model.runID = snapshot.State.RunID
		model.lines = nil
		model.following = true
	}
	model.state = snapshot.State
	if snapshot.State.Running {
		model.sawRun = true
	}

	var commands []tea.Cmd
	if len(snapshot.Lines) > 0 {
		now := model.options.Now()
		for _, line := range snapshot.Lines {
			kind := tui.HeatOutput
			if line.IsError {
				kind = tui.HeatError
			}
			model.heat.Ignite(line.Seq, kind, now)
		}
		model.lines = append(model.lines, snapshot.Lines...)
		if overflow := len(model.lines) - model.options.MaxLines; overflow > 0 {
			model.lines = model.lines[overflow:]
		}
		if !model.heatTicking {
			model.heatTicking = true
			commands = append(commands, heatTick())
		}
	}
	model.next = snapshot.Next
	model.syncPrompt(message.generation)
	model.refreshContent()

	if model.options.ExitWhenDone && model.finished() {
		model.quitting = true
		return model, tea.Quit
	}
	commands = append(commands, model.schedulePoll())
	return model, tea.Batch(commands...)
}

// finished reports whether a run has completed since the view opened.
func (model Model) finished() bool {
	return !model.state.Running && (model.sawRun || !model.state.LastFinished.IsZero())
}

// syncPrompt opens the prompt modal when the run waits for input, and
// closes it once the prompt is gone.
func (model *Model) syncPrompt(generation int) {
	if !model.state.WaitingForInput {
		model.dismissed = ""
		if model.focus == focusPrompt {
			model.focus = focusOutput
		}
		return
	}
	if model.submitting || generation != model.submitted {
		return
	}
	if model.focus == focusOutput && model.state.Prompt != model.dismissed {
		model.openPrompt()
	}
}

func (model *Model) openPrompt() {
	model.modal = tui.NewPromptModal(model.state.Prompt, model.theme)
	model.focus = focusPrompt
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch model.focus {
	case focusPrompt:
		switch {
		case key.Matches(message, model.keys.Submit):
			answer := model.modal.Value()
			model.focus = focusOutput
			model.submitting = true
			source := model.source
			return model, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), sourceTimeout)
				defer cancel()
				accepted, err := source.SubmitInput(ctx, answer)
				return inputResultMsg{accepted: accepted, err: err}
			}
		case key.Matches(message, model.keys.Dismiss):
			model.dismissed = model.modal.Prompt
			model.focus = focusOutput
			return model, nil
		case message.Type == tea.KeyCtrlC:
			model.quitting = true
			return model, tea.Quit
		}
		return model, model.modal.Update(message)

	case focusMenu:
		switch {
		case key.Matches(message, model.keys.Up):
			model.menu.MoveUp()
		case key.Matches(message, model.keys.Down):
			model.menu.MoveDown()
		case key.Matches(message, model.keys.Dismiss):
			model.focus = focusOutput
		case key.Matches(message, model.keys.Submit):
			model.focus = focusOutput
			return model.perform(model.menu.Selected().Action)
		case message.Type == tea.KeyCtrlC:
			model.quitting = true
			return model, tea.Quit
		}
		return model, nil
	}

	switch {
	case key.Matches(message, model.keys.Quit):
		model.quitting = true
		return model, tea.Quit
	case key.Matches(message, model.keys.Up):
		model.viewport.ScrollUp(1)
	case key.Matches(message, model.keys.Down):
		model.viewport.ScrollDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.viewport.PageUp()
	case key.Matches(message, model.keys.PageDown):
		model.viewport.PageDown()
	case key.Matches(message, model.keys.Top):
		model.viewport.GotoTop()
	case key.Matches(message, model.keys.Follow):
		return model.perform(actionFollow)
	case key.Matches(message, model.keys.Answer):
		if model.state.WaitingForInput {
			model.openPrompt()
		}
		return model, nil
	case key.Matches(message, model.keys.Cancel):
		return model.perform(actionCancel)
	case key.Matches(message, model.keys.Actions):
		model.menu = model.actionMenu()
		model.focus = focusMenu
		return model, nil
	default:
		return model, nil
	}
	model.following = model.viewport.AtBottom()
	return model, nil
}

func (model Model) actionMenu() tui.Menu {
	var options []tui.MenuOption
	if model.state.Running {
		options = append(options, tui.MenuOption{Label: "Cancel run", Action: actionCancel})
	}
	options = append(options,
		tui.MenuOption{Label: "Follow output", Action: actionFollow},
		tui.MenuOption{Label: "Clear view", Action: actionClear},
		tui.MenuOption{Label: "Quit", Action: actionQuit},
	)
	return tui.Menu{Title: "Actions", Options: options}
}

func (model Model) perform(action string) (tea.Model, tea.Cmd) {
	switch action {
	case actionCancel:
		source := model.source
		return model, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), sourceTimeout)
			defer cancel()
			cancelled, err := source.Cancel(ctx)
			return cancelResultMsg{cancelled: cancelled, err: err}
		}
	case actionClear:
		model.lines = nil
		model.refreshContent()
	case actionFollow:
		model.following = true
		model.viewport.GotoBottom()
	case actionQuit:
		model.quitting = true
		return model, tea.Quit
	}
	return model, nil
}

func (model *Model) setNotice(text string, level slog.Level) tea.Cmd {
	model.notice = text
	model.noticeLevel = level
	model.noticeID++
	id := model.noticeID
	delay := noticeFadeDelay
	if level >= slog.LevelWarn {
		delay = logRecordFadeDelay
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return noticeFadeMsg{id: id} })
}

// layout sizes the viewport: one header row and one status row around
// the output, one column for the scrollbar.
func (model *Model) layout() {
	model.viewport.Width = max(model.width-1, 1)
	model.viewport.Height = max(model.height-2, 1)
	model.refreshContent()
}

func (model *Model) refreshContent() {
	if !model.ready {
		return
	}
	now := model.options.Now()
	rendered := make([]string, len(model.lines))
	for index, line := range model.lines {
		rendered[index] = model.renderLine(line, now)
	}
	model.viewport.SetContent(strings.Join(rendered, "\n"))
	if model.following {
		model.viewport.GotoBottom()
	}
}

func (model Model) renderLine(line output.Line, now time.Time) string {
	style := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	switch {
	case line.IsPrompt:
		style = style.Foreground(model.theme.PromptText).Bold(true)
	case line.IsError:
		style = style.Foreground(model.theme.ErrorText)
	}
	if accent := model.heat.Accent(model.theme, line.Seq, now); accent != "" {
		style = style.Background(accent)
	}
	text := strings.ReplaceAll(line.Text, "\t", "    ")
	return style.Render(ansi.Truncate(text, model.viewport.Width, "…"))
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready || model.quitting {
		return ""
	}

	scrollbar := tui.RenderScrollbar(model.theme, model.viewport.Height,
		model.viewport.TotalLineCount(), model.viewport.Height, model.viewport.YOffset, model.following)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(model.viewport.Width).Height(model.viewport.Height).Render(model.viewport.View()),
		scrollbar)

	view := strings.Join([]string{model.header(), body, model.statusBar()}, "\n")

	switch model.focus {
	case focusPrompt:
		view = tui.CenterOverlay(view, model.modal.Render(model.width), model.width, model.height)
	case focusMenu:
		lines := model.menu.Render(model.theme)
		view = tui.SpliceOverlay(view, lines, max(model.width-model.menu.Width()-2, 0), 1)
	}
	return view
}

func (model Model) header() string {
	state := model.state
	status, text := model.headline()

	marker := lipgloss.NewStyle().Foreground(model.theme.StatusColor(status)).Bold(true)
	title := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true)

	kind := state.Kind
	if kind == "" {
		kind = state.LastKind
	}
	line := title.Render("brewkeep")
	if kind != "" {
		line += title.Render(" " + string(kind))
	}
	line += "  " + marker.Render(statusSymbol(status)) + " " + text
	return ansi.Truncate(line, model.width, "…")
}

// headline returns the theme status and text describing the run.
func (model Model) headline() (string, string) {
	state := model.state
	switch {
	case state.WaitingForInput:
		text := "Waiting for input: " + state.Prompt
		if state.QueuedPrompts > 0 {
			text += fmt.Sprintf(" (+%d queued)", state.QueuedPrompts)
		}
		return tui.StatusWaiting, text
	case state.Running:
		if state.Steps > 0 {
			return tui.StatusRunning, fmt.Sprintf("Step %d/%d  %s", state.Step, state.Steps, state.Status)
		}
		return tui.StatusRunning, state.Status
	case state.LastFinished.IsZero():
		return "", state.Status
	case state.LastSummary == notify.RunCancelled:
		return tui.StatusCancelled, state.LastSummary
	case state.LastSuccess:
		return tui.StatusOK, state.LastSummary
	default:
		return tui.StatusFailed, state.LastSummary
	}
}

func statusSymbol(status string) string {
	switch status {
	case tui.StatusRunning:
		return "●"
	case tui.StatusWaiting:
		return "?"
	case tui.StatusOK:
		return "✓"
	case tui.StatusFailed:
		return "✗"
	case tui.StatusCancelled:
		return "■"
	default:
		return "○"
	}
}

func (model Model) statusBar() string {
	style := lipgloss.NewStyle().Foreground(model.theme.HelpText)
	text := model.keys.helpLine(model.state.WaitingForInput)
	switch {
	case model.notice != "":
		text = model.notice
		switch {
		case model.noticeLevel >= slog.LevelError:
			style = style.Foreground(model.theme.StatusFailed)
		case model.noticeLevel >= slog.LevelWarn:
			style = style.Foreground(model.theme.StatusOptional)
		default:
			style = style.Foreground(model.theme.NormalText)
		}
	case model.pollErr != nil:
		text = "⚠ " + model.pollErr.Error()
		style = style.Foreground(model.theme.StatusFailed)
	}
	return style.Render(ansi.Truncate(text, model.width, "…"))
}
