package tui

import "strings"

// Hint represents a single keybind hint for display.
type Hint struct {
	Key  string
	Desc string
}

// renderHint renders a single hint as "key:desc" with styling.
func (a App) renderHint(h Hint) string {
	return a.styles.HintKey.Render(h.Key) + ":" + a.styles.HintDesc.Render(h.Desc)
}

// renderHints renders hints in horizontal format for the bottom bar.
func (a App) renderHints(hints []Hint) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = a.renderHint(h)
	}
	return strings.Join(parts, " ")
}

// renderHintsInline renders hints in inline format for modals: "Enter confirm  Esc cancel"
func (a App) renderHintsInline(hints []Hint) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = a.styles.HintKey.Render(h.Key) + " " + a.styles.HintDesc.Render(h.Desc)
	}
	return strings.Join(parts, "  ")
}

// contextualHints returns the hints for the current mode.
func (a App) contextualHints() []Hint {
	switch a.mode {
	case ModeFilter:
		return []Hint{
			{Key: "type", Desc: "filter"},
			{Key: "Enter", Desc: "apply"},
			{Key: "Esc", Desc: "clear"},
		}
	case ModeAdd, ModeEdit:
		return []Hint{
			{Key: "Tab", Desc: "next"},
			{Key: "Enter", Desc: "save"},
			{Key: "Esc", Desc: "cancel"},
		}
	case ModeConfirmDelete:
		// shown inside the modal
		return nil
	}

	if a.state.Selection.Active {
		return []Hint{
			{Key: "j/k", Desc: "move"},
			{Key: "space", Desc: "toggle"},
			{Key: "D", Desc: "delete selected"},
			{Key: "v/Esc", Desc: "done"},
		}
	}

	return []Hint{
		{Key: "j/k", Desc: "move"},
		{Key: "o", Desc: "open"},
		{Key: "/", Desc: "filter"},
		{Key: "a", Desc: "add"},
		{Key: "e", Desc: "edit"},
		{Key: "d", Desc: "del"},
		{Key: "v", Desc: "select"},
		{Key: "Y", Desc: "yank"},
		{Key: "r", Desc: "refetch"},
		{Key: "q", Desc: "quit"},
	}
}
