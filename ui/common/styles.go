package common

import "github.com/charmbracelet/lipgloss"

const (
	COLOR_GREY      = "241"
	COLOR_DARK_GREY = "238"
	COLOR_MAGENTA   = "170"
	COLOR_LIGHTBLUE = "69"
	COLOR_BLUE      = "33"
	COLOR_GREEN     = "42"
	COLOR_RED       = "196"
	COLOR_YELLOW    = "214"
	COLOR_PURPLE    = "#7D56F4"
)

var (
	HelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_GREY)).Padding(0, 2)
	CaptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_MAGENTA)).Padding(1, 2)

	RowStyle      = lipgloss.NewStyle().PaddingLeft(2)
	SelectedStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color(COLOR_GREEN)).Bold(true)
	EmptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_DARK_GREY)).Italic(true).PaddingLeft(2)
	StatusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_BLUE)).PaddingLeft(2)
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(COLOR_RED)).PaddingLeft(2)
)

func DefaultWindowWidth(width int) int {
	return width - 4
}

func DefaultWindowHeight(heigth int) int {
	return heigth - 8
}

// VisibleRows is how many list rows fit under the caption and help lines.
func VisibleRows(height int) int {
	if rows := height - 6; rows > 3 {
		return rows
	}
	return 3
}

// Window returns the [start, end) slice of n rows that keeps selected
// visible in a viewport of size rows.
func Window(n, selected, rows int) (int, int) {
	if n <= rows {
		return 0, n
	}
	start := selected - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}
