package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"tailview/pkg/core"
)

// chromeRows is header plus status bar, everything that is not the viewport.
const chromeRows = 2

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	serviceStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("171")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}

	followStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a *App) View() string {
	if !a.ready {
		return "loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.viewport.View(),
		a.renderStatusBar(),
	)
}

func (a *App) renderHeader() string {
	title := titleStyle.Render(" tailview ")

	rangeLabel := dimStyle.Render(a.controller.Store().TimeRangeLabel())

	filter := "all services"
	if s := a.filterService(); s != "" {
		filter = serviceStyle(s).Render(s)
	}

	var mode string
	switch {
	case a.paused:
		mode = dimStyle.Render("[paused]")
	case a.follow:
		mode = followStyle.Render("[follow]")
	default:
		mode = dimStyle.Render("[scroll]")
	}

	if !a.controller.Store().CanLoadOlder() {
		mode += " " + dimStyle.Render("[top of history]")
	}

	return fmt.Sprintf("%s %s  %s  %s", title, rangeLabel, filter, mode)
}

// renderEntries formats the window as one line per entry, truncated to the
// pane width so line counts stay stable for scroll anchoring.
func (a *App) renderEntries(entries []core.LogEntry, width int) string {
	if len(entries) == 0 {
		return dimStyle.Render("no entries")
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		ts := timeStyle.Render(e.TimeStr)
		tag := serviceStyle(e.Service).Render("[" + e.Service + "]")
		// Truncation is by display width so wide runes count double and the
		// line never wraps.
		prefixW := ansi.StringWidth(e.TimeStr) + ansi.StringWidth(e.Service) + 4
		raw := ""
		if w := width - prefixW; w > 0 {
			raw = ansi.Truncate(e.Raw, w, "...")
		}
		b.WriteString(ts + " " + tag + " " + raw)
	}
	return b.String()
}

func (a *App) renderStatusBar() string {
	left := a.statusMsg
	if strings.HasPrefix(left, "error:") {
		left = errorStyle.Render(left)
	}
	right := "j/k:scroll g/G:ends f:follow s:service space:pause r:reload c:clear q:quit"

	gap := a.width - lipgloss.Width(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left) + strings.Repeat(" ", gap) + helpStyle.Render(right)
}

// serviceStyle picks a stable color for a service tag.
func serviceStyle(service string) lipgloss.Style {
	var sum int
	for _, r := range service {
		sum += int(r)
	}
	return serviceStyles[sum%len(serviceStyles)]
}
