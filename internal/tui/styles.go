package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds all lipgloss styles for the TUI.
type Styles struct {
	App              lipgloss.Style
	Pane             lipgloss.Style
	PaneActive       lipgloss.Style
	Modal            lipgloss.Style
	Title            lipgloss.Style
	Item             lipgloss.Style
	ItemSelected     lipgloss.Style
	ItemMarked       lipgloss.Style
	ItemMarkedCursor lipgloss.Style
	URL              lipgloss.Style
	Empty            lipgloss.Style
	Header           lipgloss.Style
	Live             lipgloss.Style
	Offline          lipgloss.Style
	HintKey          lipgloss.Style
	HintDesc         lipgloss.Style
	Error            lipgloss.Style
	Success          lipgloss.Style
}

// DefaultStyles returns the default style configuration.
// Grayscale with a single desaturated teal accent.
func DefaultStyles() Styles {
	primary := lipgloss.AdaptiveColor{Light: "#505050", Dark: "#A0A0A0"}
	subtle := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#606060"}
	accent := lipgloss.AdaptiveColor{Light: "#4A7070", Dark: "#5F8787"}
	border := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#505050"}
	marked := lipgloss.AdaptiveColor{Light: "#8A6A3A", Dark: "#AF875F"}

	return Styles{
		App: lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2).
			PaddingRight(2),

		Pane: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(border).
			Padding(0, 1),

		PaneActive: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(accent).
			Padding(0, 1),

		Modal: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(accent).
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),

		Item: lipgloss.NewStyle().
			Foreground(primary).
			PaddingLeft(1),

		ItemSelected: lipgloss.NewStyle().
			PaddingLeft(1).
			Background(accent).
			Foreground(lipgloss.Color("#1A1A1A")),

		ItemMarked: lipgloss.NewStyle().
			PaddingLeft(1).
			Foreground(marked),

		ItemMarkedCursor: lipgloss.NewStyle().
			PaddingLeft(1).
			Background(marked).
			Foreground(lipgloss.Color("#1A1A1A")),

		URL: lipgloss.NewStyle().
			Foreground(subtle),

		Empty: lipgloss.NewStyle().
			Foreground(subtle),

		Header: lipgloss.NewStyle().
			Foreground(subtle).
			PaddingLeft(1),

		Live: lipgloss.NewStyle().
			Foreground(accent),

		Offline: lipgloss.NewStyle().
			Foreground(subtle),

		HintKey: lipgloss.NewStyle().
			Foreground(accent),

		HintDesc: lipgloss.NewStyle().
			Foreground(subtle),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#CC3333", Dark: "#FF6666"}).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#338833", Dark: "#66CC66"}).
			Bold(true),
	}
}
