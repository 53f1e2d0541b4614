// Package ui renders pipeline progress with a Bubble Tea model: a spinner,
// an overall progress bar and a per-world status table.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Event reports pipeline progress for one world.
type Event struct {
	World string
	Pass  string
	Err   error
	Done  bool
}

type item struct {
	name   string
	status string
	failed bool
	done   bool
}

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	prog    progress.Model
	items   []item
	index   map[string]int
	width   int
	done    bool
}

type eventMsg Event
type closedMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders pipeline
// progress for the given worlds.
func NewProgressModel(title string, worlds []string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 60

	items := make([]item, 0, len(worlds))
	index := make(map[string]int, len(worlds))
	for i, name := range worlds {
		items = append(items, item{name: name, status: "queued"})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		ev := Event(msg)
		if i, ok := m.index[ev.World]; ok {
			switch {
			case ev.Err != nil:
				m.items[i].status = "failed: " + ev.Err.Error()
				m.items[i].failed = true
				m.items[i].done = true
			case ev.Done:
				m.items[i].status = "done"
				m.items[i].done = true
			default:
				m.items[i].status = ev.Pass
			}
		}
		return m, tea.Batch(m.prog.SetPercent(m.fractionDone()), m.listen())
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) fractionDone() float64 {
	if len(m.items) == 0 {
		return 1
	}
	done := 0
	for _, it := range m.items {
		if it.done {
			done++
		}
	}
	return float64(done) / float64(len(m.items))
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := 0
	for _, it := range m.items {
		if l := runewidth.StringWidth(it.name); l > nameWidth {
			nameWidth = l
		}
	}
	for _, it := range m.items {
		line := fmt.Sprintf("  %s  %s", runewidth.FillRight(it.name, nameWidth), it.status)
		if it.failed {
			line = failStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.prog.View())
	b.WriteString("\n")
	return b.String()
}
