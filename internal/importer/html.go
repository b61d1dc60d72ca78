// Package importer reads Netscape bookmark HTML and creates the entries
// through the bookmark store.
package importer

import (
	"context"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Entry is one bookmark found in an export file. Folders is the path of
// folder names it sat in, outermost first.
type Entry struct {
	Title   string
	URL     string
	Folders []string
}

// DisplayTitle returns the title, prefixed with the folder path when
// withFolders is set, e.g. "Dev / React: Docs".
func (e Entry) DisplayTitle(withFolders bool) string {
	if !withFolders || len(e.Folders) == 0 {
		return e.Title
	}
	return strings.Join(e.Folders, " / ") + ": " + e.Title
}

// ParseHTMLBookmarks parses Netscape bookmark HTML into entries in document order.
func ParseHTMLBookmarks(r io.Reader) ([]Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	var folderStack []string
	pendingFolder := ""

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				// The folder applies to the next DL.
				pendingFolder = getTextContent(n)
				return

			case "a":
				href := getAttr(n, "href")
				if href == "" {
					return
				}
				title := getTextContent(n)
				if title == "" {
					title = href
				}
				entries = append(entries, Entry{
					Title:   title,
					URL:     href,
					Folders: append([]string(nil), folderStack...),
				})
				return

			case "dl":
				pushed := false
				if pendingFolder != "" {
					folderStack = append(folderStack, pendingFolder)
					pendingFolder = ""
					pushed = true
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}
				if pushed {
					folderStack = folderStack[:len(folderStack)-1]
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return entries, nil
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}

// Creator creates one bookmark remotely. *store.Store satisfies it.
type Creator interface {
	Create(ctx context.Context, title, url string) (model.Bookmark, error)
}

// Summary counts what Import did.
type Summary struct {
	Created int
	Skipped int
	Failed  int
}

// Options tunes Import.
type Options struct {
	// PrefixFolders puts the folder path in front of each title.
	PrefixFolders bool
	// Progress is called after every entry, if set.
	Progress func(e Entry, err error)
}

// Import creates every entry whose URL is not in existing and not seen
// earlier in entries. A failed create is counted and the import goes on;
// a cancelled ctx stops it.
func Import(ctx context.Context, c Creator, entries []Entry, existing []model.Bookmark, opts Options) (Summary, error) {
	seen := make(map[string]bool, len(existing)+len(entries))
	for _, b := range existing {
		seen[b.URL] = true
	}

	var sum Summary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if seen[e.URL] {
			sum.Skipped++
			continue
		}
		seen[e.URL] = true

		_, err := c.Create(ctx, e.DisplayTitle(opts.PrefixFolders), e.URL)
		if err != nil {
			sum.Failed++
		} else {
			sum.Created++
		}
		if opts.Progress != nil {
			opts.Progress(e, err)
		}
	}
	return sum, nil
}
