package tui

import "github.com/charmbracelet/lipgloss"

var (
	background = lipgloss.Color("#F9C77E")
	accent     = lipgloss.Color("#DA2E00")
	text       = lipgloss.Color("#7A2A2A")
	buttonText = lipgloss.Color("#FFEBCC")
)

var (
	screenStyle = lipgloss.NewStyle().
			Background(background).
			Foreground(text).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Background(background).
			Bold(true).
			MarginBottom(1)

	buttonStyle = lipgloss.NewStyle().
			Foreground(buttonText).
			Background(accent).
			Padding(0, 2).
			MarginRight(2)

	disabledButtonStyle = buttonStyle.
				Faint(true)

	headlineStyle = lipgloss.NewStyle().
			Foreground(text).
			Background(background).
			Bold(true).
			MarginTop(1)

	explanationStyle = lipgloss.NewStyle().
				Foreground(text).
				Background(background)

	imageStyle = lipgloss.NewStyle().
			Foreground(text).
			Background(background).
			Italic(true).
			MarginBottom(1)

	noticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Foreground(text).
			Padding(1, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(text).
			Background(background).
			Faint(true).
			MarginTop(1)
)
