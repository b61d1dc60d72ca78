package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cli/browser"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/search"
	"github.com/nikbrunner/bmsync/internal/store"
	"github.com/nikbrunner/bmsync/internal/tui/layout"
)

// App is the main bubbletea model for the bookmark client.
type App struct {
	ctx          context.Context
	store        *store.Store
	keys         KeyMap
	styles       Styles
	layoutConfig layout.LayoutConfig

	copyURL func(string) error
	openURL func(string) error

	state  store.State
	mode   Mode
	cursor int
	form   FormState
	filter FilterState

	// id awaiting confirmation in ModeConfirmDelete
	deleteID string

	// For gg command
	lastKeyWasG bool

	spinner     spinner.Model
	messageText string
	messageType MessageType

	width  int
	height int
}

// AppParams holds parameters for creating a new App.
type AppParams struct {
	Context      context.Context // optional, defaults to context.Background
	Store        *store.Store
	Keys         *KeyMap              // optional, uses default if nil
	Styles       *Styles              // optional, uses default if nil
	LayoutConfig *layout.LayoutConfig // optional, uses default if nil
	CopyURL      func(string) error   // optional, defaults to the system clipboard
	OpenURL      func(string) error   // optional, defaults to the system browser
}

// NewApp creates a new App with the given parameters.
func NewApp(params AppParams) App {
	keys := DefaultKeyMap()
	if params.Keys != nil {
		keys = *params.Keys
	}

	styles := DefaultStyles()
	if params.Styles != nil {
		styles = *params.Styles
	}

	layoutCfg := layout.DefaultConfig()
	if params.LayoutConfig != nil {
		layoutCfg = *params.LayoutConfig
	}

	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	copyURL := params.CopyURL
	if copyURL == nil {
		copyURL = clipboard.WriteAll
	}
	openURL := params.OpenURL
	if openURL == nil {
		openURL = browser.OpenURL
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.Title

	return App{
		ctx:          ctx,
		store:        params.Store,
		keys:         keys,
		styles:       styles,
		layoutConfig: layoutCfg,
		copyURL:      copyURL,
		openURL:      openURL,
		state:        params.Store.Snapshot(),
		form:         NewFormState(layoutCfg.Input),
		filter:       NewFilterState(layoutCfg.Input),
		spinner:      sp,
		width:        80,
		height:       24,
	}
}

// WithDimensions returns a copy of the App with the given terminal size.
func (a App) WithDimensions(width, height int) App {
	a.width = width
	a.height = height
	return a
}

// Cursor returns the current cursor position.
func (a App) Cursor() int {
	return a.cursor
}

// Mode returns the current interaction mode.
func (a App) Mode() Mode {
	return a.mode
}

// Message returns the status line text.
func (a App) Message() string {
	return a.messageText
}

// Items returns the bookmarks currently shown, after filtering.
func (a App) Items() []model.Bookmark {
	if a.filter.Query == "" {
		return a.state.Bookmarks
	}
	return search.Filter(a.state.Bookmarks, a.filter.Query)
}

func (a App) current() (model.Bookmark, bool) {
	items := a.Items()
	if a.cursor < 0 || a.cursor >= len(items) {
		return model.Bookmark{}, false
	}
	return items[a.cursor], true
}

// refresh takes a new snapshot and keeps the cursor in range.
func (a *App) refresh() {
	a.state = a.store.Snapshot()
	a.clampCursor()
}

func (a *App) clampCursor() {
	n := len(a.Items())
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) setMessage(t MessageType, text string) {
	a.messageType = t
	a.messageText = text
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(a.store.Changes()),
		fetchCmd(a.ctx, a.store),
		a.spinner.Tick,
	)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case storeChangedMsg:
		a.refresh()
		return a, waitForChange(a.store.Changes())

	case opDoneMsg:
		a.refresh()
		if msg.err != nil {
			a.setMessage(MessageError, msg.op+" failed")
		} else if msg.done != "" {
			a.setMessage(MessageSuccess, msg.done)
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		switch a.mode {
		case ModeFilter:
			return a.updateFilter(msg)
		case ModeAdd, ModeEdit:
			return a.updateForm(msg)
		case ModeConfirmDelete:
			return a.updateConfirmDelete(msg)
		default:
			return a.updateNormal(msg)
		}
	}

	return a, nil
}

func (a App) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle gg sequence
	if key.Matches(msg, a.keys.Top) {
		if a.lastKeyWasG {
			a.cursor = 0
			a.lastKeyWasG = false
			return a, nil
		}
		a.lastKeyWasG = true
		return a, nil
	}
	a.lastKeyWasG = false

	items := a.Items()

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(items)-1 {
			a.cursor++
		}

	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}

	case key.Matches(msg, a.keys.Bottom):
		if len(items) > 0 {
			a.cursor = len(items) - 1
		}

	case key.Matches(msg, a.keys.Refresh):
		return a, fetchCmd(a.ctx, a.store)

	case key.Matches(msg, a.keys.Filter):
		a.mode = ModeFilter
		a.filter.Input.SetValue(a.filter.Query)
		a.filter.Input.CursorEnd()
		return a, a.filter.Input.Focus()

	case key.Matches(msg, a.keys.Add):
		a.form.Reset()
		a.mode = ModeAdd
		return a, textinput.Blink

	case key.Matches(msg, a.keys.Edit):
		if b, ok := a.current(); ok {
			a.form.Load(b)
			a.mode = ModeEdit
			return a, textinput.Blink
		}

	case key.Matches(msg, a.keys.Delete):
		if b, ok := a.current(); ok {
			a.deleteID = b.ID
			a.mode = ModeConfirmDelete
		}

	case key.Matches(msg, a.keys.YankURL):
		if b, ok := a.current(); ok {
			if err := a.copyURL(b.URL); err != nil {
				a.setMessage(MessageError, "copy failed")
			} else {
				a.setMessage(MessageSuccess, "copied "+b.URL)
			}
		}

	case key.Matches(msg, a.keys.Open):
		if b, ok := a.current(); ok {
			if err := a.openURL(b.URL); err != nil {
				a.setMessage(MessageError, "open failed")
			}
		}

	case key.Matches(msg, a.keys.SelectMode):
		if a.state.Selection.Active {
			a.store.ExitSelectionMode()
		} else {
			a.store.EnterSelectionMode()
		}
		a.refresh()

	case key.Matches(msg, a.keys.ToggleSelect):
		if !a.state.Selection.Active {
			return a, nil
		}
		if b, ok := a.current(); ok {
			a.store.ToggleSelection(b.ID)
			a.refresh()
		}

	case key.Matches(msg, a.keys.DeleteSelected):
		if a.state.Selection.Active {
			return a, deleteSelectedCmd(a.ctx, a.store)
		}

	case key.Matches(msg, a.keys.Cancel):
		if a.state.Selection.Active {
			a.store.ExitSelectionMode()
			a.refresh()
		} else if a.filter.Query != "" {
			a.filter.Reset()
			a.clampCursor()
		}
	}

	return a, nil
}

func (a App) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.filter.Reset()
		a.mode = ModeNormal
		a.clampCursor()
		return a, nil
	case tea.KeyEnter:
		a.filter.Input.Blur()
		a.mode = ModeNormal
		return a, nil
	}

	var cmd tea.Cmd
	a.filter.Input, cmd = a.filter.Input.Update(msg)
	a.filter.Query = a.filter.Input.Value()
	a.cursor = 0
	return a, cmd
}

func (a App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.mode = ModeNormal
		return a, nil
	case tea.KeyTab, tea.KeyShiftTab:
		a.form.FocusNext()
		return a, nil
	case tea.KeyEnter:
		title, url := a.form.Values()
		title, url = strings.TrimSpace(title), strings.TrimSpace(url)
		if title == "" || url == "" {
			a.setMessage(MessageError, "title and URL are required")
			return a, nil
		}
		mode := a.mode
		a.mode = ModeNormal
		if mode == ModeEdit {
			return a, editCmd(a.ctx, a.store, a.form.EditID, title, url)
		}
		return a, createCmd(a.ctx, a.store, title, url)
	}

	var titleCmd, urlCmd tea.Cmd
	a.form.TitleInput, titleCmd = a.form.TitleInput.Update(msg)
	a.form.URLInput, urlCmd = a.form.URLInput.Update(msg)
	return a, tea.Batch(titleCmd, urlCmd)
}

func (a App) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		id := a.deleteID
		a.deleteID = ""
		a.mode = ModeNormal
		return a, deleteCmd(a.ctx, a.store, id)
	case "n", "esc", "q":
		a.deleteID = ""
		a.mode = ModeNormal
	}
	return a, nil
}

// View implements tea.Model.
func (a App) View() string {
	return a.renderView()
}
