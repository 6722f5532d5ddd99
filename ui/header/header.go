package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/versiond/ui/common"
	"github.com/deemkeen/versiond/util"
)

type Model struct {
	Width  int
	Domain string
	// Admin is the fingerprint of the key the session logged in with.
	Admin string
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	return GetHeaderStyle(m.Domain, m.Admin, m.Width)
}

func GetHeaderStyle(domain, admin string, width int) string {
	// three boxes, each with one cell of padding on both sides
	availableWidth := width - 6
	if availableWidth < 40 {
		availableWidth = 40
	}

	domainWidth := availableWidth / 3
	versionWidth := availableWidth / 3
	adminWidth := availableWidth - domainWidth - versionWidth

	box := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.NormalBorder(), true, false, true, false).
		BorderForeground(lipgloss.Color(common.COLOR_MAGENTA))

	host := box.
		SetString(domain).
		Background(lipgloss.Color(common.COLOR_PURPLE)).
		Width(domainWidth).
		String()

	version := box.
		SetString(util.GetNameAndVersion()).
		Background(lipgloss.Color(common.COLOR_GREY)).
		Width(versionWidth).
		String()

	key := box.
		SetString("admin " + util.Truncate(admin, adminWidth-8)).
		Background(lipgloss.Color(common.COLOR_MAGENTA)).
		Width(adminWidth).
		String()

	return lipgloss.JoinHorizontal(lipgloss.Left, host, version, key)
}
