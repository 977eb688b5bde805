package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/patchmatrix/internal/matrix"
)

// headerRows is the number of lines above the first variant/task row. Mouse
// hit-testing depends on it.
const headerRows = 3

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	columnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CCCCCC"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	plainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	mixedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

// View implements tea.Model.
func (a *App) View() string {
	header := a.renderHeader()
	left := lipgloss.NewStyle().Width(a.variantPaneWidth()).Render(a.renderVariants())
	right := a.renderTasks()
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	footer := []string{""}
	switch {
	case a.errMsg != "":
		footer = append(footer, errorStyle.Render(a.errMsg))
	case a.statusMsg != "":
		footer = append(footer, statusStyle.Render(a.statusMsg))
	default:
		footer = append(footer, statusStyle.Render(a.summary()))
	}
	footer = append(footer, a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, strings.Join(footer, "\n"))
}

// renderHeader must produce exactly headerRows lines.
func (a *App) renderHeader() string {
	title := titleStyle.Render("Patch " + a.patch.ID)
	detail := strings.TrimSpace(a.patch.Description)
	if a.patch.Author != "" {
		if detail != "" {
			detail += " · "
		}
		detail += a.patch.Author
	}
	columns := lipgloss.NewStyle().Width(a.variantPaneWidth()).Render(columnStyle.Render("Variants")) +
		columnStyle.Render("Tasks")
	return strings.Join([]string{title, subtleStyle.Render(singleLine(detail)), columns}, "\n")
}

func (a *App) renderVariants() string {
	variants := a.matrix.Variants()
	if len(variants) == 0 {
		return subtleStyle.Render("no variants")
	}
	lines := make([]string, 0, len(variants))
	for i, v := range variants {
		lines = append(lines, a.variantLine(i, v))
	}
	return strings.Join(lines, "\n")
}

func (a *App) variantLine(index int, v *matrix.Variant) string {
	cursor := "  "
	if a.focus == paneVariants && index == a.cursor {
		cursor = cursorStyle.Render("> ")
	}
	mark := "  "
	style := plainStyle
	if v.Selected {
		mark = "● "
		style = selectedStyle
	}
	count := ""
	if n := v.NumChecked(); n > 0 {
		count = subtleStyle.Render(fmt.Sprintf(" (%d)", n))
	}
	return cursor + style.Render(mark+v.DisplayName) + count
}

func (a *App) renderTasks() string {
	controls := a.matrix.Aggregator().Controls()
	if len(controls) == 0 {
		return subtleStyle.Render("select a variant to edit its tasks")
	}
	lines := make([]string, 0, len(controls))
	for i, c := range controls {
		cursor := "  "
		if a.focus == paneTasks && i == a.taskCursor {
			cursor = cursorStyle.Render("> ")
		}
		lines = append(lines, cursor+checkbox(c.State)+" "+c.Task)
	}
	return strings.Join(lines, "\n")
}

func checkbox(state matrix.Aggregate) string {
	switch state {
	case matrix.AggregateChecked:
		return selectedStyle.Render("[x]")
	case matrix.AggregateMixed:
		return mixedStyle.Render("[-]")
	default:
		return plainStyle.Render("[ ]")
	}
}

func (a *App) summary() string {
	cells := submissionCells(a.matrix)
	return fmt.Sprintf("%s selected · %s checked", pluralize(len(a.matrix.Selected()), "variant"), pluralize(cells, "task"))
}

func submissionCells(m *matrix.Matrix) int {
	total := 0
	for _, v := range m.Variants() {
		total += v.NumChecked()
	}
	return total
}

// variantPaneWidth is the left column width including the cursor and
// selection marks.
func (a *App) variantPaneWidth() int {
	longest := 0
	for _, v := range a.matrix.Variants() {
		if w := lipgloss.Width(v.DisplayName); w > longest {
			longest = w
		}
	}
	return max(24, longest+12)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
