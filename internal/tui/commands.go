package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nikbrunner/bmsync/internal/store"
)

// storeChangedMsg is sent when the store signals a change, including
// changes pushed by other clients.
type storeChangedMsg struct{}

// opDoneMsg reports the outcome of a store operation run as a command.
type opDoneMsg struct {
	op   string
	done string // status text on success, empty for none
	err  error
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

func fetchCmd(ctx context.Context, s *store.Store) tea.Cmd {
	return func() tea.Msg {
		_, err := s.FetchAll(ctx)
		return opDoneMsg{op: "fetch", err: err}
	}
}

func createCmd(ctx context.Context, s *store.Store, title, url string) tea.Cmd {
	return func() tea.Msg {
		b, err := s.Create(ctx, title, url)
		return opDoneMsg{op: "create", done: "added " + b.Title, err: err}
	}
}

func editCmd(ctx context.Context, s *store.Store, id, title, url string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Edit(ctx, id, title, url)
		return opDoneMsg{op: "edit", done: "saved " + title, err: err}
	}
}

func deleteCmd(ctx context.Context, s *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.DeleteOne(ctx, id)
		return opDoneMsg{op: "delete", done: "deleted", err: err}
	}
}

func deleteSelectedCmd(ctx context.Context, s *store.Store) tea.Cmd {
	return func() tea.Msg {
		ids, err := s.DeleteSelected(ctx)
		return opDoneMsg{op: "delete", done: fmt.Sprintf("deleted %d bookmarks", len(ids)), err: err}
	}
}
