package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/surello/internal/service"
)

// recentLines is how many status lines stay visible under the bar.
const recentLines = 5

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// runEventMsg carries one per-file event from the orchestrator.
type runEventMsg service.Event

// runDoneMsg signals the end of the run.
type runDoneMsg struct {
	result *service.RunResult
	err    error
}

// progressModel is the bubbletea model for a load run.
type progressModel struct {
	total      int
	processed  int
	skipped    int
	failed     int
	recent     []string
	progress   progress.Model
	theme      Theme
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	result     *service.RunResult
	err        error
}

// newProgressModel creates a new progress model for total files to load.
func newProgressModel(total int, cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		total:    total,
		progress: prog,
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Stop before the next file and wait for the run to report back.
			if !m.cancelling && m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
			return m, nil
		}

	case runEventMsg:
		ev := service.Event(msg)
		switch ev.Kind {
		case service.EventLoaded, service.EventUnrecorded:
			m.processed++
		case service.EventFailed:
			m.processed++
			m.failed++
		case service.EventSkipped:
			m.skipped++
		}
		m.recent = append(m.recent, ev.Message())
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
		return m, nil

	case runDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// percent returns the completed fraction of files to load.
func (m progressModel) percent() float64 {
	if m.total == 0 {
		return 1
	}
	pct := float64(m.processed) / float64(m.total)
	if pct > 1 {
		// Files created after planning can push past the estimate.
		pct = 1
	}
	return pct
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	label := "[loading]"
	if m.cancelling {
		label = "[stopping]"
	}
	status := m.theme.statusStyle().Render(label)
	counts := fmt.Sprintf("%d/%d files", m.processed, m.total)
	if m.skipped > 0 {
		counts += fmt.Sprintf(", %d skipped", m.skipped)
	}
	if m.failed > 0 {
		counts += m.theme.errorStyle().Render(fmt.Sprintf(", %d failed", m.failed))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", status, m.progress.ViewAs(m.percent()), counts)
	for _, line := range m.recent {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to stop after the current file") + "\n")
	return b.String()
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	var b strings.Builder
	switch {
	case m.err != nil:
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("✗ Run aborted: %s", m.err)) + "\n")
	case m.result != nil && m.result.Failed > 0:
		b.WriteString(m.theme.errorStyle().Render("✓ Completed with failures") + "\n")
	default:
		b.WriteString(m.theme.completedStyle().Render("✓ Completed") + "\n")
	}
	if m.result != nil {
		b.WriteString("\n")
		writeRunSummary(&b, m.result)
	}
	return b.String()
}

// RunLoadProgress runs fn behind the interactive progress UI.
// fn receives a cancellable context and the event callback to pass to the
// orchestrator. Ctrl+C cancels the context; the run stops before its next
// file and its partial result is still returned.
func RunLoadProgress(
	ctx context.Context,
	total int,
	fn func(ctx context.Context, onEvent func(service.Event)) (*service.RunResult, error),
) (*service.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newProgressModel(total, cancel)
	p := tea.NewProgram(model)

	done := make(chan runDoneMsg, 1)
	go func() {
		result, err := fn(ctx, func(ev service.Event) { p.Send(runEventMsg(ev)) })
		msg := runDoneMsg{result: result, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		out := <-done
		if out.err == nil {
			out.err = fmt.Errorf("progress UI error: %w", err)
		}
		return out.result, out.err
	}

	out := <-done
	return out.result, out.err
}
