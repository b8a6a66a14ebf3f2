package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rangepull/rangepull/internal/engine"
)

func refreshTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		m.syncRows()
		return m, tea.Batch(refreshTick())

	case eventMsg:
		m.applyEvent(msg)
		return m, listenForEvents(m.events)

	default:
		return m, nil
	}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "p":
		m.withSelected(func(id string) { _ = m.commands.PauseDownload(id) })
	case "r":
		m.withSelected(func(id string) { _ = m.commands.ResumeDownload(id) })
	case "c":
		m.withSelected(func(id string) { _ = m.commands.CancelDownload(id) })
	case "x":
		m.withSelected(func(id string) { _ = m.commands.RemoveTask(id) })
	case "C":
		m.commands.ClearCompletedTasks()
	}
	m.syncRows()
	return m, nil
}

func (m model) withSelected(fn func(id string)) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return
	}
	fn(m.rows[m.cursor].info.ID)
}

func (m *model) applyEvent(msg eventMsg) {
	switch {
	case msg.progress != nil:
		for i := range m.rows {
			if m.rows[i].info.ID == msg.progress.TaskID {
				m.rows[i].info.Downloaded = msg.progress.Downloaded
				m.rows[i].info.Speed = msg.progress.Speed
				m.rows[i].info.Status = msg.progress.Status
				if msg.progress.Total != nil {
					m.rows[i].info.TotalBytes = msg.progress.Total
				}
			}
		}
	case msg.finished != nil:
		for i := range m.rows {
			if m.rows[i].info.ID == msg.finished.TaskID {
				m.rows[i].info.Status = msg.finished.Status
			}
		}
		m.statusLine = string(msg.finished.Status) + ": " + msg.finished.Filename
	}
}

// sink adapts the model's event channel into an engine.EventSink, fed
// from the scheduler's own goroutines (OnProgress/OnFinished run there,
// not on the TUI's update loop — they just enqueue for it).
type sink struct{ ch chan tea.Msg }

func newSink(ch chan tea.Msg) engine.EventSink { return sink{ch: ch} }

func (s sink) OnProgress(e engine.ProgressEvent) {
	select {
	case s.ch <- eventMsg{progress: &e}:
	default:
	}
}

func (s sink) OnFinished(e engine.FinishedEvent) {
	select {
	case s.ch <- eventMsg{finished: &e}:
	default:
	}
}
