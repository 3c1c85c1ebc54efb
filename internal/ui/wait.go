package ui

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/doorctl/internal/door"
)

// ErrInterrupted is returned by Wait when the user pressed ctrl+c. The
// session keeps running until its own timeouts end it.
var ErrInterrupted = stderrors.New("interrupted")

// SpinnerFrames defines the animation frames (◐ ◓ ◑ ◒) of the wait spinner.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10, // 100ms per frame
}

// WaitFunc blocks until the outcome of a request is known.
type WaitFunc func(ctx context.Context) (door.Outcome, error)

type outcomeMsg struct {
	outcome door.Outcome
	err     error
}

// waitModel is a Bubble Tea model that spins until an outcome arrives.
type waitModel struct {
	spinner spinner.Model
	label   string
	wait    func() tea.Msg
	result  *outcomeMsg
}

func newWaitModel(label string, wait func() tea.Msg) waitModel {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)
	return waitModel{spinner: sp, label: label, wait: wait}
}

func (m waitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait)
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case outcomeMsg:
		m.result = &msg
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.result = &outcomeMsg{err: ErrInterrupted}
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.result != nil {
		return ""
	}
	return m.spinner.View() + " " + m.label + "...\n"
}

// Wait runs wait, animating a spinner labelled label on out when animate
// is set.
func Wait(ctx context.Context, out io.Writer, label string, animate bool, wait WaitFunc) (door.Outcome, error) {
	if !animate {
		return wait(ctx)
	}

	model := newWaitModel(label, func() tea.Msg {
		o, err := wait(ctx)
		return outcomeMsg{outcome: o, err: err}
	})
	final, err := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx)).Run()
	if err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return door.Outcome{}, err
	}
	m, ok := final.(waitModel)
	if !ok || m.result == nil {
		if ctx.Err() != nil {
			return door.Outcome{}, ctx.Err()
		}
		return door.Outcome{}, ErrInterrupted
	}
	return m.result.outcome, m.result.err
}
