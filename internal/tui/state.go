package tui

import (
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tui/layout"
)

// Mode is the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeAdd
	ModeEdit
	ModeConfirmDelete
)

// MessageType controls how the status line is rendered.
type MessageType int

const (
	MessageInfo MessageType = iota
	MessageSuccess
	MessageError
)

// FormState holds the add/edit bookmark form.
type FormState struct {
	TitleInput textinput.Model
	URLInput   textinput.Model
	EditID     string // empty when adding
}

// NewFormState creates a FormState with initialized inputs.
func NewFormState(cfg layout.InputConfig) FormState {
	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = cfg.TitleCharLimit
	title.Width = cfg.Width

	url := textinput.New()
	url.Placeholder = "https://..."
	url.CharLimit = cfg.URLCharLimit
	url.Width = cfg.Width

	return FormState{TitleInput: title, URLInput: url}
}

// Reset clears the form and focuses the title input.
func (f *FormState) Reset() {
	f.TitleInput.Reset()
	f.URLInput.Reset()
	f.EditID = ""
	f.TitleInput.Focus()
	f.URLInput.Blur()
}

// Load fills the form from an existing bookmark for editing.
func (f *FormState) Load(b model.Bookmark) {
	f.Reset()
	f.EditID = b.ID
	f.TitleInput.SetValue(b.Title)
	f.URLInput.SetValue(b.URL)
}

// FocusNext moves focus between title and URL.
func (f *FormState) FocusNext() {
	if f.TitleInput.Focused() {
		f.TitleInput.Blur()
		f.URLInput.Focus()
		return
	}
	f.URLInput.Blur()
	f.TitleInput.Focus()
}

// Values returns the form values.
func (f FormState) Values() (title, url string) {
	return f.TitleInput.Value(), f.URLInput.Value()
}

// FilterState holds the local fuzzy filter.
type FilterState struct {
	Input textinput.Model
	Query string // active query, kept after the input closes
}

// NewFilterState creates a FilterState with an initialized input.
func NewFilterState(cfg layout.InputConfig) FilterState {
	input := textinput.New()
	input.Placeholder = "Filter..."
	input.CharLimit = cfg.FilterCharLimit
	input.Width = cfg.Width
	return FilterState{Input: input}
}

// Reset clears the filter.
func (f *FilterState) Reset() {
	f.Input.Reset()
	f.Input.Blur()
	f.Query = ""
}
