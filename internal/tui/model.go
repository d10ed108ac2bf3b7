// Package tui is the interactive terminal prediction form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/pricecast/internal/features"
	"github.com/fyrsmithlabs/pricecast/internal/predictor"
	"github.com/fyrsmithlabs/pricecast/internal/session"
)

const (
	labelWidth = 44
	inputWidth = 16
)

// Starter begins an asynchronous submission. *predictor.Form implements it.
type Starter interface {
	Start(ctx context.Context, raw map[string]string) (<-chan predictor.Result, error)
}

// Model is the bubbletea model for the prediction form.
type Model struct {
	ctx   context.Context
	form  Starter
	names []string

	inputs  []textinput.Model
	focus   int
	spinner spinner.Model

	pending  bool
	started  time.Time
	elapsed  time.Duration
	result   *predictor.Result
	notice   string
	user     *session.Record
	width    int
	quitting bool
}

// Message types
type resultMsg predictor.Result

// SessionMsg replaces the signed-in user shown in the banner. A nil Record
// means signed out. Send it from a session watcher via Program.Send.
type SessionMsg struct {
	Record *session.Record
}

// NewModel creates a form with one input per feature, focused on the first.
// user may be nil for a guest.
func NewModel(ctx context.Context, form Starter, user *session.Record) Model {
	names := features.Names()
	inputs := make([]textinput.Model, len(names))
	for i := range names {
		ti := textinput.New()
		ti.Prompt = "› "
		ti.Placeholder = "0"
		ti.CharLimit = 24
		ti.Width = inputWidth
		if i == 0 {
			ti.Focus()
		}
		inputs[i] = ti
	}

	return Model{
		ctx:     ctx,
		form:    form,
		names:   names,
		inputs:  inputs,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		user:    user,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Values returns the raw text of every input keyed by feature name.
func (m Model) Values() map[string]string {
	raw := make(map[string]string, len(m.names))
	for i, name := range m.names {
		raw[name] = m.inputs[i].Value()
	}
	return raw
}

// Pending reports whether a submission is outstanding.
func (m Model) Pending() bool { return m.pending }

// Result returns the last terminal result, if any.
func (m Model) Result() *predictor.Result { return m.result }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab", "down":
			cmd := m.moveFocus(1)
			return m, cmd
		case "shift+tab", "up":
			cmd := m.moveFocus(-1)
			return m, cmd
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case resultMsg:
		res := predictor.Result(msg)
		m.pending = false
		m.result = &res
		m.elapsed = time.Since(m.started)
		return m, nil

	case SessionMsg:
		m.user = msg.Record
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// moveFocus cycles the focused input by delta. Inputs stay editable while
// a submission is pending; only submitting is disabled.
func (m *Model) moveFocus(delta int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	ch, err := m.form.Start(m.ctx, m.Values())
	if errors.Is(err, predictor.ErrPending) {
		m.notice = "A prediction is already in progress."
		return m, nil
	}
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}

	m.pending = true
	m.result = nil
	m.notice = ""
	m.started = time.Now()
	return m, tea.Batch(m.spinner.Tick, waitForResult(ch))
}

func waitForResult(ch <-chan predictor.Result) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-ch)
	}
}

// View renders the form.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" Boston House Price Prediction ") + "\n")
	b.WriteString(banner(m.user) + "\n\n")

	for i, name := range m.names {
		label := labelStyle
		if i == m.focus {
			label = focusedLabelStyle
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			label.Render(fmt.Sprintf("%-8s %s", name, features.Describe(name))),
			m.inputs[i].View(),
		) + "\n")
	}

	b.WriteString("\n")
	if m.pending {
		b.WriteString(disabledButtonStyle.Render(m.spinner.View()+" Predicting...") + "\n")
	} else {
		b.WriteString(buttonStyle.Render("Predict Price") + "\n")
	}

	if m.notice != "" {
		b.WriteString(dimStyle.Render(m.notice) + "\n")
	}

	if m.result != nil {
		b.WriteString("\n" + m.renderResult() + "\n")
	}

	footer := footerKeyStyle.Render("[tab]") + footerStyle.Render(" next  ") +
		footerKeyStyle.Render("[shift+tab]") + footerStyle.Render(" prev  ") +
		footerKeyStyle.Render("[enter]") + footerStyle.Render(" predict  ") +
		footerKeyStyle.Render("[esc]") + footerStyle.Render(" quit")
	b.WriteString(footer)

	style := containerStyle
	if m.width > 0 {
		style = style.MaxWidth(m.width)
	}
	return style.Render(b.String())
}

func (m Model) renderResult() string {
	if m.result.Estimate != nil {
		return successPanel.Render(
			dimStyle.Render("Estimated price ") +
				valueStyle.Render(m.result.Estimate.Display) +
				dimStyle.Render("  ("+formatElapsed(m.elapsed)+")"),
		)
	}
	if m.result.Failure != nil {
		return errorPanel.Render(m.result.Failure.Message)
	}
	return ""
}
