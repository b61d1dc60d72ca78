// Package exporter writes bookmarks as Netscape bookmark HTML, the format
// every browser imports.
package exporter

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/bmsync/internal/model"
)

// DefaultExportPath returns the default export file path.
// Format: ~/Downloads/bookmarks-export-YYYY-MM-DD.html
func DefaultExportPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("bookmarks-export-%s.html", time.Now().Format("2006-01-02"))
	return filepath.Join(home, "Downloads", filename), nil
}

// ExportHTML renders bookmarks in collection order as a flat list.
func ExportHTML(bookmarks []model.Bookmark) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Bookmarks</TITLE>\n")
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	for _, bookmark := range bookmarks {
		fmt.Fprintf(&b,
			"    <DT><A HREF=\"%s\">%s</A>\n",
			html.EscapeString(bookmark.URL),
			html.EscapeString(bookmark.Title),
		)
	}

	b.WriteString("</DL><p>\n")
	return b.String()
}

// WriteHTML writes the export to w.
func WriteHTML(w io.Writer, bookmarks []model.Bookmark) error {
	_, err := io.WriteString(w, ExportHTML(bookmarks))
	return err
}

// WriteFile writes the export to path, creating the directory if needed.
func WriteFile(path string, bookmarks []model.Bookmark) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(ExportHTML(bookmarks)), 0644)
}
