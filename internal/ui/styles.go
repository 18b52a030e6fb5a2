package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#E0525B")
	ColorGreen   = lipgloss.Color("#5FD787")
	ColorYellow  = lipgloss.Color("#F2C94C")
	ColorMoon    = lipgloss.Color("#9DB4FF")
	ColorGray    = lipgloss.Color("#6C6F85")
	ColorDimGray = lipgloss.Color("#45475A")
	ColorWhite   = lipgloss.Color("#EEEEEE")
	ColorViolet  = lipgloss.Color("#C792EA")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMoon)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	RecordingDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	FinalizingDotStyle = lipgloss.NewStyle().
				Foreground(ColorViolet).
				Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	OnlineStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	OfflineStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	PreviewTextStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMoon)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorMoon).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	TagStyle = lipgloss.NewStyle().
			Foreground(ColorViolet)

	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	LevelGreenStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	LevelYellowStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	LevelGrayStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	MoodPositiveStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	MoodNeutralStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	MoodNegativeStyle = lipgloss.NewStyle().
				Foreground(ColorRed)
)

// MoodStyle picks the color of a mood score in [-100, 100].
func MoodStyle(mood int) lipgloss.Style {
	switch {
	case mood >= 20:
		return MoodPositiveStyle
	case mood <= -20:
		return MoodNegativeStyle
	default:
		return MoodNeutralStyle
	}
}
