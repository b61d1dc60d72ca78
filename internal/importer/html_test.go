package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nikbrunner/bmsync/internal/importer"
	"github.com/nikbrunner/bmsync/internal/model"
)

func TestParseHTML_SingleBookmark(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><A HREF="https://example.com" ADD_DATE="1234567890">Example Site</A>
</DL><p>`

	entries, err := importer.ParseHTMLBookmarks(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Title != "Example Site" {
		t.Errorf("expected title 'Example Site', got %q", e.Title)
	}
	if e.URL != "https://example.com" {
		t.Errorf("expected URL 'https://example.com', got %q", e.URL)
	}
	if len(e.Folders) != 0 {
		t.Errorf("expected root entry, got folders %v", e.Folders)
	}
}

func TestParseHTML_NestedFolders(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3 ADD_DATE="1234567890">Development</H3>
    <DL><p>
        <DT><H3 ADD_DATE="1234567890">React</H3>
        <DL><p>
            <DT><A HREF="https://react.dev" ADD_DATE="1234567890">React Docs</A>
        </DL><p>
        <DT><A HREF="https://github.com" ADD_DATE="1234567890">GitHub</A>
    </DL><p>
    <DT><A HREF="https://google.com" ADD_DATE="1234567890">Google</A>
</DL><p>`

	entries, err := importer.ParseHTMLBookmarks(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	want := map[string]string{
		"React Docs": "Development / React: React Docs",
		"GitHub":     "Development: GitHub",
		"Google":     "Google",
	}
	for _, e := range entries {
		if got := e.DisplayTitle(true); got != want[e.Title] {
			t.Errorf("DisplayTitle(%q) = %q, want %q", e.Title, got, want[e.Title])
		}
		if e.DisplayTitle(false) != e.Title {
			t.Errorf("DisplayTitle(false) should be the bare title, got %q", e.DisplayTitle(false))
		}
	}
}

func TestParseHTML_EmptyFile(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
</DL><p>`

	entries, err := importer.ParseHTMLBookmarks(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(entries))
	}
}

func TestParseHTML_MissingHrefAndTitle(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><A ADD_DATE="1234567890">No URL</A>
    <DT><A HREF="https://valid.com" ADD_DATE="1234567890">Valid</A>
    <DT><A HREF="https://untitled.com"></A>
</DL><p>`

	entries, err := importer.ParseHTMLBookmarks(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (skip missing href), got %d", len(entries))
	}
	if entries[0].Title != "Valid" {
		t.Errorf("expected 'Valid' entry, got %q", entries[0].Title)
	}
	if entries[1].Title != "https://untitled.com" {
		t.Errorf("expected URL as fallback title, got %q", entries[1].Title)
	}
}

type fakeCreator struct {
	created []model.Bookmark
	failURL string
}

func (f *fakeCreator) Create(_ context.Context, title, url string) (model.Bookmark, error) {
	if url == f.failURL {
		return model.Bookmark{}, errors.New("boom")
	}
	b := model.Bookmark{ID: url, Title: title, URL: url}
	f.created = append(f.created, b)
	return b, nil
}

func TestImport(t *testing.T) {
	entries := []importer.Entry{
		{Title: "Existing", URL: "https://existing"},
		{Title: "New", URL: "https://new", Folders: []string{"Dev"}},
		{Title: "Dup", URL: "https://new"},
		{Title: "Broken", URL: "https://broken"},
	}
	existing := []model.Bookmark{{ID: "1", Title: "Existing", URL: "https://existing"}}
	c := &fakeCreator{failURL: "https://broken"}

	var progressed int
	sum, err := importer.Import(context.Background(), c, entries, existing, importer.Options{
		PrefixFolders: true,
		Progress:      func(importer.Entry, error) { progressed++ },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sum != (importer.Summary{Created: 1, Skipped: 2, Failed: 1}) {
		t.Errorf("unexpected summary %+v", sum)
	}
	if progressed != 2 {
		t.Errorf("expected progress for 2 attempted entries, got %d", progressed)
	}
	if len(c.created) != 1 || c.created[0].Title != "Dev: New" {
		t.Errorf("unexpected creations %+v", c.created)
	}
}

func TestImport_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &fakeCreator{}
	_, err := importer.Import(ctx, c, []importer.Entry{{Title: "A", URL: "https://a"}}, nil, importer.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(c.created) != 0 {
		t.Error("nothing should be created after cancel")
	}
}
