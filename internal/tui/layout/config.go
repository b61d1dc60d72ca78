package layout

// LayoutConfig holds all layout-related configuration values.
type LayoutConfig struct {
	Pane  PaneConfig
	Modal ModalConfig
	Input InputConfig
	Text  TextConfig
}

// PaneConfig holds list and detail pane dimensions.
type PaneConfig struct {
	// HeightReduction is subtracted from terminal height for pane content.
	// Accounts for: app padding (1) + header (1) + pane borders (2) + status bar (3) = 7
	HeightReduction int
	MinHeight       int

	// ListWidthPercent is the list pane's share of the usable width.
	ListWidthPercent int
	// WidthOffset covers borders and padding of both panes.
	WidthOffset  int
	MinListWidth int

	// ContentPadding is subtracted from pane width for item rendering.
	ContentPadding int
}

// ModalConfig holds modal dialog configuration.
type ModalConfig struct {
	WidthPercent int
	MinWidth     int
	MaxWidth     int
}

// InputConfig holds text input configuration.
type InputConfig struct {
	TitleCharLimit  int
	URLCharLimit    int
	FilterCharLimit int
	Width           int
}

// TextConfig holds text truncation configuration.
type TextConfig struct {
	Ellipsis string
}

// DefaultConfig returns the default layout configuration.
func DefaultConfig() LayoutConfig {
	return LayoutConfig{
		Pane: PaneConfig{
			HeightReduction:  7,
			MinHeight:        5,
			ListWidthPercent: 55,
			WidthOffset:      8,
			MinListWidth:     20,
			ContentPadding:   4,
		},
		Modal: ModalConfig{
			WidthPercent: 50,
			MinWidth:     40,
			MaxWidth:     80,
		},
		Input: InputConfig{
			TitleCharLimit:  200,
			URLCharLimit:    2048,
			FilterCharLimit: 50,
			Width:           50,
		},
		Text: TextConfig{
			Ellipsis: "...",
		},
	}
}
