package picker

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/search"
)

func twoResults() []search.Result {
	return []search.Result{
		{Bookmark: model.Bookmark{ID: "b1", Title: "GitHub", URL: "https://github.com"}},
		{Bookmark: model.Bookmark{ID: "b2", Title: "GitLab", URL: "https://gitlab.com"}},
	}
}

func press(p Picker, msg tea.KeyMsg) (Picker, tea.Cmd) {
	m, cmd := p.Update(msg)
	return m.(Picker), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPicker_InitialState(t *testing.T) {
	p := New(twoResults(), "git")

	if p.cursor != 0 {
		t.Errorf("expected cursor at 0, got %d", p.cursor)
	}
	if len(p.results) != 2 {
		t.Errorf("expected 2 results, got %d", len(p.results))
	}
}

func TestPicker_Navigate(t *testing.T) {
	tests := []struct {
		name  string
		start int
		msg   tea.KeyMsg
		want  int
	}{
		{name: "j moves down", start: 0, msg: runes("j"), want: 1},
		{name: "k moves up", start: 1, msg: runes("k"), want: 0},
		{name: "down arrow", start: 0, msg: tea.KeyMsg{Type: tea.KeyDown}, want: 1},
		{name: "up arrow", start: 1, msg: tea.KeyMsg{Type: tea.KeyUp}, want: 0},
		{name: "k stops at top", start: 0, msg: runes("k"), want: 0},
		{name: "j stops at bottom", start: 1, msg: runes("j"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(twoResults(), "git")
			p.cursor = tt.start

			p, _ = press(p, tt.msg)
			if p.cursor != tt.want {
				t.Errorf("expected cursor at %d, got %d", tt.want, p.cursor)
			}
		})
	}
}

func TestPicker_SelectItem(t *testing.T) {
	p := New(twoResults(), "git")
	p.cursor = 1

	p, cmd := press(p, tea.KeyMsg{Type: tea.KeyEnter})

	if !p.selected {
		t.Error("expected selected to be true after Enter")
	}
	if cmd == nil {
		t.Error("expected quit command after selection")
	}
	got, ok := p.SelectedBookmark()
	if !ok || got.ID != "b2" {
		t.Errorf("expected b2 selected, got %+v (ok=%v)", got, ok)
	}
}

func TestPicker_Cancel(t *testing.T) {
	for _, msg := range []tea.KeyMsg{{Type: tea.KeyEsc}, runes("q")} {
		p := New(twoResults(), "git")

		p, cmd := press(p, msg)
		if !p.Cancelled() {
			t.Errorf("expected cancelled after %q", msg.String())
		}
		if cmd == nil {
			t.Error("expected quit command after cancel")
		}
		if _, ok := p.SelectedBookmark(); ok {
			t.Error("expected no selection when cancelled")
		}
	}
}

func TestPicker_ViewListsResults(t *testing.T) {
	p := New(twoResults(), "git")
	view := p.View()

	for _, want := range []string{"Search: git (2 results)", "github.com", "gitlab.com", "> "} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestPicker_ViewScrollsToCursor(t *testing.T) {
	var results []search.Result
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		results = append(results, search.Result{Bookmark: model.Bookmark{ID: id, Title: "title-" + id, URL: "https://" + id}})
	}
	p := New(results, "t")
	p.height = 9 // two rows of results
	p.cursor = 5

	view := p.View()
	if strings.Contains(view, "title-a") {
		t.Error("first result should have scrolled out of view")
	}
	if !strings.Contains(view, "title-f") {
		t.Error("cursor result should be visible")
	}
}

func TestRun_ShortCircuits(t *testing.T) {
	if _, ok, err := Run(nil, "x"); ok || err != nil {
		t.Errorf("expected no selection for no results, got ok=%v err=%v", ok, err)
	}

	only := []search.Result{{Bookmark: model.Bookmark{ID: "only"}}}
	b, ok, err := Run(only, "x")
	if err != nil || !ok || b.ID != "only" {
		t.Errorf("expected single result to be chosen, got %+v ok=%v err=%v", b, ok, err)
	}
}
