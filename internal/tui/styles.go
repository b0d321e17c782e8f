package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorLavender = lipgloss.Color("#E4D9FF")
	colorNavy     = lipgloss.Color("#273469")
	colorInk      = lipgloss.Color("#1E2749")
	colorSlate    = lipgloss.Color("#30343F")
	colorWhite    = lipgloss.Color("#FAFAFF")
	colorMuted    = lipgloss.Color("8")
	colorError    = lipgloss.Color("9")
	colorOK       = lipgloss.Color("10")
	colorWarn     = lipgloss.Color("11")
)

var (
	brandStyle = lipgloss.NewStyle().Bold(true).Foreground(colorInk)

	sidebarStyle = lipgloss.NewStyle().
			Background(colorLavender).
			Foreground(colorInk).
			Padding(1, 2)

	formStyle = lipgloss.NewStyle().
			Background(colorNavy).
			Foreground(colorWhite).
			Padding(1, 2)

	queryStyle = lipgloss.NewStyle().
			Background(colorLavender).
			Foreground(colorInk).
			Padding(1, 2)

	selectedItemStyle = lipgloss.NewStyle().
				Background(colorSlate).
				Foreground(colorWhite).
				Bold(true)

	cursorItemStyle = lipgloss.NewStyle().Underline(true)

	titleStyle = lipgloss.NewStyle().Bold(true)

	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
	okStyle     = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	buttonStyle = lipgloss.NewStyle().
			Background(colorLavender).
			Foreground(colorSlate).
			Padding(0, 2)
	activeButtonStyle = buttonStyle.
				Background(colorWhite).
				Bold(true)

	responseBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorSlate).
				Padding(0, 1)
)
