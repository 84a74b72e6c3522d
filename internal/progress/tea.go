package progress

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg struct{}
type stopMsg struct{}

type dashboardModel struct {
	viewFn func() View
	view   View
	quit   func()
}

func (m dashboardModel) Init() tea.Cmd {
	return nil
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			// Hand shutdown to the daemon so in-flight jobs abort cleanly.
			if m.quit != nil {
				m.quit()
			}
			return m, nil
		}
	case tickMsg:
		m.view = m.viewFn()
		return m, nil
	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m dashboardModel) View() string {
	return Render(m.view)
}

// RunDashboard renders the live status table until ctx is cancelled, refreshing
// from viewFn on a ticker. onQuit is invoked when the user presses Ctrl-C.
// The returned function stops the dashboard and blocks until the program has
// exited and restored the terminal.
func RunDashboard(ctx context.Context, w io.Writer, viewFn func() View, onQuit func()) func() {
	model := dashboardModel{viewFn: viewFn, view: viewFn(), quit: onQuit}
	program := tea.NewProgram(model, tea.WithOutput(w), tea.WithAltScreen())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = program.Run()
	}()

	ticker := time.NewTicker(250 * time.Millisecond)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				program.Send(stopMsg{})
				return
			case <-stop:
				program.Send(stopMsg{})
				return
			case <-ticker.C:
				program.Send(tickMsg{})
			}
		}
	}()
	return func() {
		close(stop)
		ticker.Stop()
		program.Send(stopMsg{})
		// The terminal must be restored before the caller exits.
		<-finished
	}
}
