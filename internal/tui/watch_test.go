package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/statusfile"
)

func newWatchModel() Model {
	return NewModel(statusfile.NewChannel("", nil), 100*time.Millisecond)
}

func isQuit(t *testing.T, cmd tea.Cmd) bool {
	t.Helper()
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestUpdateQuitKeys(t *testing.T) {
	keys := map[string]tea.KeyMsg{
		"q":      {Type: tea.KeyRunes, Runes: []rune("q")},
		"ctrl+c": {Type: tea.KeyCtrlC},
		"esc":    {Type: tea.KeyEsc},
	}
	for name, msg := range keys {
		t.Run(name, func(t *testing.T) {
			m := newWatchModel()
			if _, cmd := m.Update(msg); !isQuit(t, cmd) {
				t.Errorf("key %q did not quit", name)
			}
		})
	}
}

func TestUpdateTerminalStateQuitsOnNextTick(t *testing.T) {
	m := newWatchModel()

	next, _ := m.Update(statusMsg{rec: statusfile.Record{
		State:   statusfile.StateSuccess,
		Message: "2 module(s) formatted",
	}})
	m = next.(Model)
	if !m.done {
		t.Fatal("terminal record did not mark the model done")
	}

	_, cmd := m.Update(tickMsg(time.Now()))
	if !isQuit(t, cmd) {
		t.Error("tick after terminal state did not quit")
	}
}

func TestUpdateMissingStatusAfterDoneQuits(t *testing.T) {
	m := newWatchModel()

	next, _ := m.Update(statusMsg{rec: statusfile.Record{State: statusfile.StateSuccess}})
	m = next.(Model)

	_, cmd := m.Update(statusMsg{err: errors.ErrNoStatus})
	if !isQuit(t, cmd) {
		t.Error("cleanup after terminal state did not quit")
	}
}

func TestViewShowsStateAndMessage(t *testing.T) {
	m := newWatchModel()

	next, _ := m.Update(statusMsg{rec: statusfile.Record{
		State:    statusfile.StateRunning,
		Message:  "formatting 3 modules",
		Progress: 0.5,
	}})
	m = next.(Model)

	view := m.View()
	if !strings.Contains(view, "RUNNING") {
		t.Errorf("view missing state:\n%s", view)
	}
	if !strings.Contains(view, "formatting 3 modules") {
		t.Errorf("view missing message:\n%s", view)
	}
}

func TestViewBeforeFirstStatus(t *testing.T) {
	m := newWatchModel()
	if view := m.View(); !strings.Contains(view, "waiting for a formatting session") {
		t.Errorf("initial view missing placeholder:\n%s", view)
	}
}
