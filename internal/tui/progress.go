package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/ook/internal/pipeline"
)

type eventMsg pipeline.Event

type streamClosedMsg struct{}

func waitForEvent(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// progressModel renders sync events as a progress bar per stage.
type progressModel struct {
	events   <-chan pipeline.Event
	bar      progress.Model
	current  pipeline.Event
	finished []string
	summary  *pipeline.Summary
	err      string
	detached bool
	closed   bool
}

func newProgressModel(events <-chan pipeline.Event) *progressModel {
	return &progressModel{
		events: events,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultListWidth-20)),
	}
}

func (m *progressModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		ev := pipeline.Event(msg)
		switch ev.Kind {
		case pipeline.KindStageEnd:
			m.finished = append(m.finished, fmt.Sprintf("%-7s %s", ev.Stage, ev.Label))
			m.current = pipeline.Event{}
		case pipeline.KindDone:
			m.summary = ev.Summary
			return m, tea.Quit
		case pipeline.KindError:
			m.err = ev.Err
			return m, tea.Quit
		default:
			m.current = ev
		}
		return m, waitForEvent(m.events)
	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.detached = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = clamp(defaultListWidth-20, msg.Width-24, 10)
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Syncing library"))
	b.WriteString("\n")

	for _, line := range m.finished {
		b.WriteString(doneStyle.Render("✓ " + line))
		b.WriteString("\n")
	}

	if m.current.Stage != "" && m.summary == nil && m.err == "" {
		percent := 0.0
		if m.current.Total > 0 {
			percent = float64(m.current.Current) / float64(m.current.Total)
		}
		fmt.Fprintf(&b, "%-7s %s %d/%d\n", m.current.Stage, m.bar.ViewAs(percent), m.current.Current, m.current.Total)
		if m.current.Label != "" {
			b.WriteString(labelStyle.Render(fmt.Sprintf("        %q (%s elapsed, ~%s remaining)",
				m.current.Label, formatDuration(m.current.Elapsed), formatDuration(m.current.ETA))))
			b.WriteString("\n")
		}
	}

	switch {
	case m.err != "":
		b.WriteString(errorStyle.Render("✗ " + m.err))
		b.WriteString("\n")
	case m.summary != nil:
		b.WriteString(doneStyle.Render(FormatSummary(*m.summary)))
		b.WriteString("\n")
	default:
		b.WriteString(helpStyle.Render("q close view (sync keeps running)"))
		b.WriteString("\n")
	}
	return b.String()
}

var (
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("161")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
)

// FormatSummary renders a run summary on one line.
func FormatSummary(s pipeline.Summary) string {
	return fmt.Sprintf("Done: %d imported, %d enriched (%d attempted), %d embedded",
		s.Imported, s.Enriched, s.Attempted, s.Embedded)
}

// formatDuration renders d as 42s, 3m5s or 1h2m.
func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm%ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh%dm", secs/3600, (secs%3600)/60)
	}
}

// RunSyncProgress shows stream in a terminal view and blocks until the run
// finishes. Closing the view early detaches it; the run still completes.
func RunSyncProgress(stream *pipeline.Stream) (pipeline.Summary, error) {
	finalModel, err := runProgram(newProgressModel(stream.Events()))
	if err != nil {
		slog.Warn("Progress view failed, waiting for sync without it", "error", err)
		stream.Detach()
		return stream.Wait()
	}
	if typed, ok := finalModel.(*progressModel); ok && typed.detached {
		stream.Detach()
		fmt.Println("View closed, waiting for sync to finish...")
	}
	return stream.Wait()
}
