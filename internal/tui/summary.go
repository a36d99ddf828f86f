package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"morph/internal/queue"
)

type SummaryRow struct {
	Label string
	Value string
}

// QueueSummary builds the rows printed after a batch run.
func QueueSummary(items []queue.Snapshot, elapsed time.Duration) []SummaryRow {
	return []SummaryRow{
		{Label: "Items", Value: fmt.Sprintf("%d", len(items))},
		{Label: "Completed", Value: fmt.Sprintf("%d", countStatus(items, queue.StatusCompleted))},
		{Label: "Failed", Value: fmt.Sprintf("%d", countStatus(items, queue.StatusFailed))},
		{Label: "Pending", Value: fmt.Sprintf("%d", countStatus(items, queue.StatusPending))},
		{Label: "Elapsed", Value: elapsed.Round(time.Millisecond).String()},
	}
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// RenderFailures lists failed items with their messages, or "" if none.
func RenderFailures(items []queue.Snapshot) string {
	var lines []string
	for _, item := range items {
		if item.Status == queue.StatusFailed {
			lines = append(lines, statusStyle(queue.StatusFailed).Render("✗ "+item.SourcePath)+dimStyle.Render(": "+item.Message))
		}
	}
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
)
