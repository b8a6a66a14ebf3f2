package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rangepull/rangepull/internal/utils"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

func (m model) View() string {
	if m.width == 0 {
		return "loading...\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", headerStyle.Render(fmt.Sprintf("rangepull %s", m.version)))

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("No downloads. Use 'rangepull add <url>' from another terminal.") + "\n")
	}

	for i, row := range m.rows {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}

		pct := 0.0
		if row.info.TotalBytes != nil && *row.info.TotalBytes > 0 {
			pct = float64(row.info.Downloaded) / float64(*row.info.TotalBytes)
		}

		size := "?"
		if row.info.TotalBytes != nil {
			size = utils.HumanBytes(*row.info.TotalBytes)
		}
		speed := ""
		if row.info.Speed > 0 {
			speed = " " + utils.HumanBytes(int64(row.info.Speed)) + "/s"
		}

		title := fmt.Sprintf("%s%s [%s] %s/%s%s", cursor, row.info.Filename, row.info.Status, utils.HumanBytes(row.info.Downloaded), size, speed)
		fmt.Fprintln(&b, style.Render(title))
		fmt.Fprintln(&b, "  "+row.bar.ViewAs(pct))
		if row.info.ErrorMessage != "" {
			fmt.Fprintln(&b, "  "+dimStyle.Render(row.info.ErrorMessage))
		}
	}

	if m.statusLine != "" {
		fmt.Fprintf(&b, "\n%s\n", dimStyle.Render(m.statusLine))
	}

	b.WriteString(helpStyle.Render("↑/↓ select  p pause  r resume  c cancel  x remove  C clear-completed  q quit"))
	return b.String()
}
