// Package tui renders a live view of an in-flight formatting session by
// polling the shared status channel.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/statusfile"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))

	stateStyles = map[statusfile.State]lipgloss.Style{
		statusfile.StateStarting:  lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		statusfile.StateRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		statusfile.StateSuccess:   lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")).Bold(true),
		statusfile.StateFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		statusfile.StateTimeout:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		statusfile.StateCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
	}

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 2)
)

type tickMsg time.Time

type statusMsg struct {
	rec statusfile.Record
	err error
}

// Model is the bubbletea model for the watch view. It polls the status
// channel on a fixed interval and exits once a terminal state is observed.
type Model struct {
	channel  *statusfile.Channel
	interval time.Duration

	spin spinner.Model
	bar  progress.Model

	rec     statusfile.Record
	haveRec bool
	done    bool
}

// NewModel builds a watch model over the given status channel.
func NewModel(channel *statusfile.Channel, interval time.Duration) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	return Model{
		channel:  channel,
		interval: interval,
		spin:     s,
		bar:      progress.New(progress.WithDefaultGradient()),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.poll(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		rec, err := m.channel.ReadStatus()
		return statusMsg{rec: rec, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		if m.done {
			return m, tea.Quit
		}
		return m, tea.Batch(m.poll(), m.tick())

	case statusMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, errors.ErrNoStatus) {
				// Transient read errors resolve on the next poll.
				return m, nil
			}
			if m.done {
				// Terminal record already seen and now cleaned up.
				return m, tea.Quit
			}
			m.haveRec = false
			return m, nil
		}
		m.rec = msg.rec
		m.haveRec = true
		if m.rec.State.IsTerminal() {
			m.done = true
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	title := titleStyle.Render("fmtgate")

	if !m.haveRec {
		body := lipgloss.JoinVertical(lipgloss.Left,
			title,
			m.spin.View()+dimStyle.Render("waiting for a formatting session..."),
			dimStyle.Render("q to quit"),
		)
		return boxStyle.Render(body) + "\n"
	}

	style, ok := stateStyles[m.rec.State]
	if !ok {
		style = dimStyle
	}
	stateLine := style.Render(m.rec.State.String())
	if !m.rec.State.IsTerminal() {
		stateLine = m.spin.View() + stateLine
	}

	lines := []string{
		title,
		stateLine + "  " + m.rec.Message,
		m.bar.ViewAs(m.rec.Progress),
	}
	if n := len(m.rec.Files); n > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("%d file(s) in session %s", n, m.rec.SessionID)))
	}
	lines = append(lines, dimStyle.Render("q to quit"))

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}

// Watch runs the watch view until the session reaches a terminal state or
// the user quits.
func Watch(channel *statusfile.Channel, interval time.Duration) error {
	p := tea.NewProgram(NewModel(channel, interval))
	_, err := p.Run()
	return err
}
