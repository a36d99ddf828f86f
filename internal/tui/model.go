package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"morph/internal/queue"
)

// Controller is the part of *queue.Processor the view drives.
type Controller interface {
	Start()
	Pause()
	Clear()
	Items() []queue.Snapshot
	IsRunning() bool
}

type Model struct {
	queue   Controller
	events  <-chan queue.Event
	started time.Time
	width   int
	height  int

	items    []queue.Snapshot
	running  bool
	quitting bool

	// ExitWhenDone quits once a run ends with nothing left pending.
	ExitWhenDone bool
}

type doneMsg struct{}

type eventMsg queue.Event

func NewModel(q Controller, events <-chan queue.Event) Model {
	return Model{
		queue:   q,
		events:  events,
		started: time.Now(),
		items:   q.Items(),
		running: q.IsRunning(),
	}
}

func (m Model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.items = m.queue.Items()
		m.running = m.queue.IsRunning()
		if m.ExitWhenDone && msg.Kind == queue.EventRunState && !msg.Running && countStatus(m.items, queue.StatusPending) == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, listenForEvents(m.events)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "s":
			m.queue.Start()
		case "p":
			m.queue.Pause()
		case "c":
			m.queue.Clear()
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		m.items = m.queue.Items()
		m.running = m.queue.IsRunning()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	total := len(m.items)
	completed := countStatus(m.items, queue.StatusCompleted)
	failed := countStatus(m.items, queue.StatusFailed)
	ratio := 0.0
	if total > 0 {
		ratio = float64(completed+failed) / float64(total)
	}

	state := dimStyle.Render("idle")
	if m.running {
		state = statusStyle(queue.StatusInProgress).Render("running")
	}
	elapsed := time.Since(m.started).Round(time.Second)

	lines := []string{
		titleStyle.Render("morph") + "  " + state,
		labelStyle.Render(fmt.Sprintf("Items: %d/%d", completed+failed, total)) +
			dimStyle.Render(fmt.Sprintf("  failed:%d  pending:%d", failed, countStatus(m.items, queue.StatusPending))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
		"",
	}
	lines = append(lines, m.itemLines()...)
	lines = append(lines, "", dimStyle.Render("s start • p pause • c clear • q quit"))

	return strings.Join(lines, "\n")
}

// itemLines renders a window of the queue that keeps the active item visible.
func (m Model) itemLines() []string {
	if len(m.items) == 0 {
		return []string{dimStyle.Render("queue is empty")}
	}

	visible := 10
	if m.height > 0 {
		visible = max(m.height-9, 3)
	}

	first := 0
	for i, item := range m.items {
		if item.Status == queue.StatusInProgress || item.Status == queue.StatusPending {
			first = i
			break
		}
	}
	first = max(min(first-1, len(m.items)-visible), 0)
	last := min(first+visible, len(m.items))

	lines := make([]string, 0, last-first+1)
	for _, item := range m.items[first:last] {
		line := statusStyle(item.Status).Render(fmt.Sprintf("%-11s", item.Status)) + " " + labelStyle.Render(item.FileName)
		if item.Status == queue.StatusFailed && item.Message != "" {
			line += dimStyle.Render("  " + item.Message)
		}
		lines = append(lines, line)
	}
	if hidden := len(m.items) - last; hidden > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("… %d more", hidden)))
	}
	return lines
}

func listenForEvents(events <-chan queue.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func countStatus(items []queue.Snapshot, status queue.Status) int {
	n := 0
	for _, item := range items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func statusStyle(s queue.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(StatusColor(s))
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorAccentAlt)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
