// Package tui provides interactive terminal views for ook.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/ook/internal/library"
)

const (
	defaultListWidth  = 72
	defaultListHeight = 20
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// SelectionAction is the user's choice in the book picker.
type SelectionAction int

const (
	ActionNone SelectionAction = iota
	ActionSelected
	ActionSkipped
	ActionStopped
)

// SelectionResult holds the outcome of SelectBook.
type SelectionResult struct {
	Action    SelectionAction
	Selection *library.Record
}

type bookItem struct {
	library.Record
}

func (i bookItem) Title() string       { return i.Record.Title }
func (i bookItem) FilterValue() string { return i.Record.Title }

func (i bookItem) Description() string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata.Description
}

type itemStyles struct {
	normal        lipgloss.Style
	selected      lipgloss.Style
	typeStyle     lipgloss.Style
	titleStyle    lipgloss.Style
	authorStyle   lipgloss.Style
	metadataStyle lipgloss.Style
	overviewStyle lipgloss.Style
}

func newItemStyles() itemStyles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	container := lipgloss.NewStyle().
		Border(asciiBorder).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	selected := container.Copy().
		BorderForeground(lipgloss.Color("214")).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("237"))

	return itemStyles{
		normal:        container,
		selected:      selected,
		typeStyle:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110")),
		titleStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("254")),
		authorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		metadataStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("247")).Faint(true),
		overviewStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("248")),
	}
}

type bookDelegate struct {
	styles itemStyles
}

func (d bookDelegate) Height() int                         { return 5 }
func (d bookDelegate) Spacing() int                        { return 1 }
func (d bookDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d bookDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	book, ok := item.(bookItem)
	if !ok {
		return
	}

	kind := book.ResourceType
	if kind == "" {
		kind = "book"
	}
	width := m.Width() - 4

	content := lipgloss.JoinVertical(lipgloss.Left,
		d.styles.typeStyle.Render(fmt.Sprintf("[%s]", strings.ToUpper(kind))),
		d.styles.metadataStyle.Render(formatMetadata(book.Record, width)),
		d.styles.titleStyle.Render(strings.ToUpper(book.Record.Title)),
		d.styles.authorStyle.Render(strings.Join(book.Authors, ", ")),
		d.styles.overviewStyle.Render(truncate(book.Description(), width)),
	)

	container := d.styles.normal
	if idx == m.Index() {
		container = d.styles.selected
	}
	_, _ = fmt.Fprint(w, container.Render(content))
}

type selectModel struct {
	list   list.Model
	query  string
	result SelectionResult
}

func newSelectModel(query string, records []library.Record) *selectModel {
	items := make([]list.Item, len(records))
	for i, rec := range records {
		items[i] = bookItem{Record: rec}
	}

	l := list.New(items, bookDelegate{styles: newItemStyles()}, defaultListWidth, defaultListHeight)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle()

	return &selectModel{
		list:   l,
		query:  query,
		result: SelectionResult{Action: ActionNone},
	}
}

func (m *selectModel) Init() tea.Cmd { return nil }

func (m *selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if selected, ok := m.list.SelectedItem().(bookItem); ok {
				rec := selected.Record
				m.result = SelectionResult{Action: ActionSelected, Selection: &rec}
				return m, tea.Quit
			}
		case "s", "esc":
			m.result = SelectionResult{Action: ActionSkipped}
			return m, tea.Quit
		case "ctrl+c", "q":
			m.result = SelectionResult{Action: ActionStopped}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(clamp(defaultListWidth, msg.Width-4, 40), clamp(defaultListHeight, msg.Height-6, 5))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *selectModel) View() string {
	header := headerStyle.Render(fmt.Sprintf("Results for: %s", m.query))
	help := helpStyle.Render("Up/Down navigate | Enter show | s skip | q quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View(), help)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// SelectBook lets the user pick one of records. An empty list is skipped
// without starting the UI.
func SelectBook(query string, records []library.Record) (SelectionResult, error) {
	if len(records) == 0 {
		return SelectionResult{Action: ActionSkipped}, nil
	}

	finalModel, err := runProgram(newSelectModel(query, records))
	if err != nil {
		return SelectionResult{}, err
	}
	if typed, ok := finalModel.(*selectModel); ok {
		return typed.result, nil
	}
	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	r := []rune(value)
	if width <= 0 || len(r) <= width {
		return value
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

// formatMetadata renders publish year, read progress and subjects on one line.
func formatMetadata(rec library.Record, availableWidth int) string {
	var parts []string
	if rec.Metadata != nil && rec.Metadata.PublishYear != nil {
		parts = append(parts, fmt.Sprintf("%d", *rec.Metadata.PublishYear))
	}
	if rec.PercentRead > 0 {
		parts = append(parts, fmt.Sprintf("%d%% read", rec.PercentRead))
	}
	if rec.Metadata != nil && len(rec.Metadata.Subjects) > 0 {
		parts = append(parts, strings.Join(rec.Metadata.Subjects, ", "))
	}

	if len(parts) == 0 {
		return "No metadata available"
	}
	return truncate(strings.Join(parts, " | "), availableWidth)
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
