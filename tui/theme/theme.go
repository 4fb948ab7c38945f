// Package theme holds the shared lipgloss palette and styles used by the CLI
// output, the log formatter and the dashboard.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/storefront/config"
)

const defaultThemeName = "kanagawa"

// --- Kanagawa palette (light, dark) ---
const (
	kanagawaGreenLight, kanagawaGreenDark   = "#4E7C5A", "#98BB6C"
	kanagawaYellowLight, kanagawaYellowDark = "#A68A64", "#FF9E3B"
	kanagawaRedLight, kanagawaRedDark       = "#C34043", "#FF5D62"
	kanagawaOrangeLight, kanagawaOrangeDark = "#CC6B4E", "#FFA066"
	kanagawaCyanLight, kanagawaCyanDark     = "#5B8BBE", "#7E9CD8"
	kanagawaBlueLight, kanagawaBlueDark     = "#4F7CAC", "#7FB4CA"
	kanagawaVioletLight, kanagawaVioletDark = "#674D7A", "#957FB8"
	kanagawaTextLight, kanagawaTextDark     = "#2B2F42", "#DCD7BA"
	kanagawaMutedLight, kanagawaMutedDark   = "#6C7086", "#727169"
	kanagawaBorderLight, kanagawaBorderDark = "#B5BDC5", "#363646"
	kanagawaSelectLight, kanagawaSelectDark = "#E2E6F3", "#223249"
)

// Colors is the palette a theme is built from.
type Colors struct {
	Green              lipgloss.TerminalColor
	Yellow             lipgloss.TerminalColor
	Red                lipgloss.TerminalColor
	Orange             lipgloss.TerminalColor
	Cyan               lipgloss.TerminalColor
	Blue               lipgloss.TerminalColor
	Violet             lipgloss.TerminalColor
	LightText          lipgloss.TerminalColor
	MutedText          lipgloss.TerminalColor
	Border             lipgloss.TerminalColor
	SelectedBackground lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Colors Colors

	Header lipgloss.Style
	Title  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold     lipgloss.Style
	Italic   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style

	TableHeader lipgloss.Style
	Box         lipgloss.Style
	DetailsBox  lipgloss.Style
	Input       lipgloss.Style

	Highlight lipgloss.Style
	Accent    lipgloss.Style
}

var themeRegistry = map[string]func() Colors{
	"kanagawa": newKanagawaColors,
	"terminal": newTerminalColors,
}

// DefaultTheme is the theme selected by STOREFRONT_THEME or the tui.theme config key.
var DefaultTheme = NewThemeWithName(getThemeName())

// NewThemeWithName constructs a theme from a palette name, falling back to the default palette.
func NewThemeWithName(name string) *Theme {
	builder, ok := themeRegistry[normalizeThemeName(name)]
	if !ok {
		builder = themeRegistry[defaultThemeName]
	}
	return newThemeFromColors(builder())
}

// StatusStyle returns the style used to render a store or session status.
func (t *Theme) StatusStyle(status string) lipgloss.Style {
	switch strings.ToUpper(status) {
	case "READY", "COMPLETE":
		return t.Success
	case "FAILED":
		return t.Error
	case "PROVISIONING", "CONNECTING":
		return t.Warning
	default:
		return t.Muted
	}
}

func newThemeFromColors(colors Colors) *Theme {
	return &Theme{
		Colors: colors,

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Orange).
			MarginBottom(1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Underline(true),

		Success: lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true),

		Bold:   lipgloss.NewStyle().Bold(true),
		Italic: lipgloss.NewStyle().Italic(true),
		Muted:  lipgloss.NewStyle().Faint(true),
		Selected: lipgloss.NewStyle().
			Background(colors.SelectedBackground).
			Foreground(colors.LightText),

		TableHeader: lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colors.Border),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Border).
			Padding(0, 1),

		DetailsBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colors.Violet).
			Padding(0, 1),

		Input: lipgloss.NewStyle().Foreground(colors.LightText),

		Highlight: lipgloss.NewStyle().Foreground(colors.Orange).Bold(true),
		Accent:    lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),
	}
}

func normalizeThemeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.ReplaceAll(normalized, "_", "-")
	return normalized
}

func getThemeName() string {
	if theme := normalizeThemeName(os.Getenv("STOREFRONT_THEME")); theme != "" {
		return theme
	}

	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil {
		return defaultThemeName
	}

	var tuiCfg struct {
		Theme string `yaml:"theme"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err == nil {
		if theme := normalizeThemeName(tuiCfg.Theme); theme != "" {
			return theme
		}
	}

	return defaultThemeName
}

func newKanagawaColors() Colors {
	adaptive := func(light, dark string) lipgloss.TerminalColor {
		return lipgloss.AdaptiveColor{Light: light, Dark: dark}
	}
	return Colors{
		Green:              adaptive(kanagawaGreenLight, kanagawaGreenDark),
		Yellow:             adaptive(kanagawaYellowLight, kanagawaYellowDark),
		Red:                adaptive(kanagawaRedLight, kanagawaRedDark),
		Orange:             adaptive(kanagawaOrangeLight, kanagawaOrangeDark),
		Cyan:               adaptive(kanagawaCyanLight, kanagawaCyanDark),
		Blue:               adaptive(kanagawaBlueLight, kanagawaBlueDark),
		Violet:             adaptive(kanagawaVioletLight, kanagawaVioletDark),
		LightText:          adaptive(kanagawaTextLight, kanagawaTextDark),
		MutedText:          adaptive(kanagawaMutedLight, kanagawaMutedDark),
		Border:             adaptive(kanagawaBorderLight, kanagawaBorderDark),
		SelectedBackground: adaptive(kanagawaSelectLight, kanagawaSelectDark),
	}
}

// newTerminalColors uses ANSI indexes so the terminal's own palette applies.
func newTerminalColors() Colors {
	return Colors{
		Green:              lipgloss.Color("2"),
		Yellow:             lipgloss.Color("3"),
		Red:                lipgloss.Color("1"),
		Orange:             lipgloss.Color("208"),
		Cyan:               lipgloss.Color("6"),
		Blue:               lipgloss.Color("4"),
		Violet:             lipgloss.Color("5"),
		LightText:          lipgloss.Color("7"),
		MutedText:          lipgloss.Color("8"),
		Border:             lipgloss.Color("8"),
		SelectedBackground: lipgloss.Color("8"),
	}
}
