// Package tui renders a compact, list-plus-progress-bars live view of the
// engine's tasks. It deliberately does not replicate a full multi-tab
// desktop shell (file pickers, confirmation modals, history browsing) —
// those are out of scope here; this package is a thin, read-mostly
// consumer of the engine's command surface and event stream.
package tui

import (
	"context"
	"sort"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rangepull/rangepull/internal/engine"
)

// taskRow is one task's display state, refreshed either from a
// ProgressEvent/FinishedEvent or from a periodic full List() poll.
type taskRow struct {
	info engine.TaskInfo
	bar  progress.Model
}

type model struct {
	ctx      context.Context
	commands *engine.Commands
	events   chan tea.Msg

	rows   []taskRow
	cursor int

	version string
	width   int
	height  int

	statusLine string
}

// eventMsg wraps an engine event so Update can type-switch on it.
type eventMsg struct {
	progress *engine.ProgressEvent
	finished *engine.FinishedEvent
}

// refreshMsg triggers a full List() resync; sent on a one-second timer.
// Key commands resync directly via syncRows instead.
type refreshMsg struct{}

func newModel(ctx context.Context, commands *engine.Commands, events chan tea.Msg, version string) model {
	return model{
		ctx:      ctx,
		commands: commands,
		events:   events,
		version:  version,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenForEvents(m.events), refreshTick())
}

func listenForEvents(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m *model) syncRows() {
	infos := m.commands.ListDownloads()
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt < infos[j].CreatedAt })

	byID := make(map[string]taskRow, len(m.rows))
	for _, r := range m.rows {
		byID[r.info.ID] = r
	}

	rows := make([]taskRow, 0, len(infos))
	for _, info := range infos {
		row, ok := byID[info.ID]
		if !ok {
			row = taskRow{bar: progress.New(progress.WithDefaultGradient())}
		}
		row.info = info
		rows = append(rows, row)
	}
	m.rows = rows

	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
