package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rangepull/rangepull/internal/engine"
)

// Run wires sched's events into a Bubbletea program and blocks until the
// user quits or ctx is cancelled. It installs itself as the scheduler's
// event sink before returning control, so OnProgress/OnFinished calls
// from worker goroutines land on the program's update loop instead of
// being dropped by the default no-op sink.
func Run(ctx context.Context, sched *engine.Scheduler, version string) error {
	events := make(chan tea.Msg, 64)
	sched.SetSink(newSink(events))

	commands := engine.NewCommands(sched)
	m := newModel(ctx, commands, events, version)
	m.syncRows()

	program := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		return err
	}
	return nil
}
