package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of the survey form.
type Theme struct {
	Name      string
	Primary   lipgloss.Color // title, cursor
	Secondary lipgloss.Color // selected row, slider knob
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Success   lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color // anchors, hints
	Track     lipgloss.Color // unfilled slider track
	Border    lipgloss.Color
	// Glamour is the glamour style used for the narrative ("dark" or "light").
	Glamour string
}

// DarkTheme is the default theme.
func DarkTheme() Theme {
	return Theme{
		Name:      "dark",
		Primary:   lipgloss.Color("#fab283"),
		Secondary: lipgloss.Color("#5c9cf5"),
		Error:     lipgloss.Color("#e06c75"),
		Warning:   lipgloss.Color("#f5a742"),
		Success:   lipgloss.Color("#7fd88f"),
		Text:      lipgloss.Color("#eeeeee"),
		TextMuted: lipgloss.Color("#808080"),
		Track:     lipgloss.Color("#484848"),
		Border:    lipgloss.Color("#484848"),
		Glamour:   "dark",
	}
}

// LightTheme is for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Name:      "light",
		Primary:   lipgloss.Color("#b35c00"),
		Secondary: lipgloss.Color("#0550ae"),
		Error:     lipgloss.Color("#cf222e"),
		Warning:   lipgloss.Color("#bf8700"),
		Success:   lipgloss.Color("#116329"),
		Text:      lipgloss.Color("#1f2328"),
		TextMuted: lipgloss.Color("#656d76"),
		Track:     lipgloss.Color("#d0d7de"),
		Border:    lipgloss.Color("#d0d7de"),
		Glamour:   "light",
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	if name == "light" {
		return LightTheme()
	}
	return DarkTheme()
}

type styles struct {
	title    lipgloss.Style
	selected lipgloss.Style
	text     lipgloss.Style
	dim      lipgloss.Style
	knob     lipgloss.Style
	filled   lipgloss.Style
	track    lipgloss.Style
	value    lipgloss.Style
	rule     lipgloss.Style

	info lipgloss.Style
	warn lipgloss.Style
	err  lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		selected: lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		text:     lipgloss.NewStyle().Foreground(t.Text),
		dim:      lipgloss.NewStyle().Foreground(t.TextMuted),
		knob:     lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		filled:   lipgloss.NewStyle().Foreground(t.Secondary),
		track:    lipgloss.NewStyle().Foreground(t.Track),
		value:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		rule:     lipgloss.NewStyle().Foreground(t.Border),

		info: lipgloss.NewStyle().Foreground(t.Success),
		warn: lipgloss.NewStyle().Foreground(t.Warning),
		err:  lipgloss.NewStyle().Foreground(t.Error),
	}
}
