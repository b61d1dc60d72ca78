package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/tui/layout"
)

// renderView creates the list and detail panes, or the active modal.
func (a App) renderView() string {
	if a.mode == ModeAdd || a.mode == ModeEdit || a.mode == ModeConfirmDelete {
		return a.renderModal()
	}

	panes := layout.CalculatePanes(a.width, a.height, a.layoutConfig.Pane)
	columns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		a.renderListPane(panes.ListWidth, panes.Height),
		a.renderDetailPane(panes.DetailWidth, panes.Height),
	)

	content := a.styles.App.Render(
		lipgloss.JoinVertical(lipgloss.Left, a.renderHeader(), columns, a.renderStatusBar()),
	)

	return lipgloss.Place(a.width, a.height, lipgloss.Left, lipgloss.Top, content)
}

// renderHeader shows the bookmark count, activity and push channel status.
func (a App) renderHeader() string {
	var parts []string
	parts = append(parts, a.styles.Title.Render("bmsync"))
	parts = append(parts, fmt.Sprintf("%d bookmarks", len(a.state.Bookmarks)))

	if a.state.Fetching {
		parts = append(parts, a.spinner.View()+" fetching")
	} else if a.state.Busy {
		parts = append(parts, a.spinner.View()+" saving")
	}

	if a.state.Selection.Active {
		parts = append(parts, fmt.Sprintf("[select: %d]", a.state.Selection.Count()))
	}

	if a.state.Live {
		parts = append(parts, a.styles.Live.Render("● live"))
	} else {
		parts = append(parts, a.styles.Offline.Render("○ offline"))
	}

	return a.styles.Header.Render(strings.Join(parts, "  "))
}

func (a App) renderListPane(width, height int) string {
	var content strings.Builder

	headerLines := 0
	if a.mode == ModeFilter {
		content.WriteString("/" + a.filter.Input.View() + "\n")
		headerLines = 1
	} else if a.filter.Query != "" {
		content.WriteString(a.styles.URL.Render("/"+a.filter.Query) + "\n")
		headerLines = 1
	}

	visibleHeight := max(height-headerLines, 1)
	itemWidth := layout.ItemWidth(width, a.layoutConfig.Pane)
	items := a.Items()

	if len(items) == 0 {
		switch {
		case a.filter.Query != "":
			content.WriteString(a.styles.Empty.Render("(no matches)"))
		case a.state.Fetching:
			content.WriteString(a.styles.Empty.Render("(loading)"))
		default:
			content.WriteString(a.styles.Empty.Render("(no bookmarks)"))
		}
	} else {
		offset := layout.ViewportOffset(a.cursor, len(items), visibleHeight)
		end := min(offset+visibleHeight, len(items))
		for i := offset; i < end; i++ {
			content.WriteString(a.renderItem(items[i], i == a.cursor, itemWidth) + "\n")
		}
	}

	return a.styles.PaneActive.
		Width(width).
		Height(height).
		Render(strings.TrimRight(content.String(), "\n"))
}

func (a App) renderItem(b model.Bookmark, isCursor bool, maxWidth int) string {
	prefix := ""
	isMarked := false
	if a.state.Selection.Active {
		isMarked = a.state.Selection.IsSelected(b.ID)
		if isMarked {
			prefix = "[x] "
		} else {
			prefix = "[ ] "
		}
	}

	line := layout.TruncateWithPrefix(b.Title, maxWidth, prefix, a.layoutConfig.Text)

	if isCursor {
		line += strings.Repeat(" ", max(maxWidth-lipgloss.Width(line), 0))
		if isMarked {
			return a.styles.ItemMarkedCursor.Render(line)
		}
		return a.styles.ItemSelected.Render(line)
	}
	if isMarked {
		return a.styles.ItemMarked.Render(line)
	}
	return a.styles.Item.Render(line)
}

func (a App) renderDetailPane(width, height int) string {
	var content strings.Builder
	itemWidth := layout.ItemWidth(width, a.layoutConfig.Pane)

	if b, ok := a.current(); ok {
		content.WriteString(a.styles.Title.Render(layout.Truncate(b.Title, itemWidth, a.layoutConfig.Text)) + "\n\n")
		content.WriteString(a.styles.URL.Render(layout.Truncate(b.URL, itemWidth, a.layoutConfig.Text)) + "\n\n")
		content.WriteString(a.styles.Empty.Render(layout.Truncate("id "+b.ID, itemWidth, a.layoutConfig.Text)))
	}

	return a.styles.Pane.
		Width(width).
		Height(height).
		Render(content.String())
}

func (a App) renderStatusBar() string {
	var lines []string

	switch a.messageType {
	case MessageError:
		lines = append(lines, a.styles.Error.Render(a.messageText))
	case MessageSuccess:
		lines = append(lines, a.styles.Success.Render(a.messageText))
	default:
		lines = append(lines, a.messageText)
	}

	lines = append(lines, a.renderHints(a.contextualHints()))
	return strings.Join(lines, "\n")
}

// renderModal renders the add/edit form or the delete confirmation.
func (a App) renderModal() string {
	var content strings.Builder
	var hints []Hint

	switch a.mode {
	case ModeAdd, ModeEdit:
		if a.mode == ModeAdd {
			content.WriteString(a.styles.Title.Render("Add Bookmark") + "\n\n")
		} else {
			content.WriteString(a.styles.Title.Render("Edit Bookmark") + "\n\n")
		}
		content.WriteString("Title:\n" + a.form.TitleInput.View() + "\n\n")
		content.WriteString("URL:\n" + a.form.URLInput.View())
		hints = []Hint{{Key: "Tab", Desc: "next"}, {Key: "Enter", Desc: "save"}, {Key: "Esc", Desc: "cancel"}}

	case ModeConfirmDelete:
		title := a.deleteID
		for _, b := range a.state.Bookmarks {
			if b.ID == a.deleteID {
				title = b.Title
				break
			}
		}
		content.WriteString(a.styles.Title.Render("Delete Bookmark") + "\n\n")
		content.WriteString(fmt.Sprintf("Delete %q?", title))
		hints = []Hint{{Key: "y", Desc: "delete"}, {Key: "n", Desc: "cancel"}}
	}

	content.WriteString("\n\n" + a.renderHintsInline(hints))

	width := layout.ModalWidth(a.width, a.layoutConfig.Modal)
	modal := lipgloss.Place(
		a.width,
		a.height-3,
		lipgloss.Center,
		lipgloss.Center,
		a.styles.Modal.Width(width).Render(content.String()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, modal, a.renderStatusBar())
}
