// Package search does fuzzy matching over a bookmark list.
package search

import (
	"github.com/sahilm/fuzzy"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Field names the bookmark field a Result matched on.
type Field int

const (
	FieldTitle Field = iota
	FieldURL
)

// Result is one fuzzy match. MatchedIndexes index into the matched field.
type Result struct {
	Bookmark       model.Bookmark
	Field          Field
	MatchedIndexes []int
	Score          int
}

type titles []model.Bookmark

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

type urls []model.Bookmark

func (u urls) String(i int) string { return u[i].URL }
func (u urls) Len() int            { return len(u) }

// Fuzzy matches query against titles, then against URLs of the bookmarks
// whose title did not match. Each group is sorted best first.
func Fuzzy(bookmarks []model.Bookmark, query string) []Result {
	if query == "" {
		return nil
	}

	titleMatches := fuzzy.FindFrom(query, titles(bookmarks))
	matched := make(map[int]bool, len(titleMatches))
	results := make([]Result, 0, len(titleMatches))
	for _, m := range titleMatches {
		matched[m.Index] = true
		results = append(results, Result{
			Bookmark:       bookmarks[m.Index],
			Field:          FieldTitle,
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		})
	}

	for _, m := range fuzzy.FindFrom(query, urls(bookmarks)) {
		if matched[m.Index] {
			continue
		}
		results = append(results, Result{
			Bookmark:       bookmarks[m.Index],
			Field:          FieldURL,
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		})
	}

	return results
}

// Filter returns the bookmarks matching query in result order.
// An empty query returns the input unchanged.
func Filter(bookmarks []model.Bookmark, query string) []model.Bookmark {
	if query == "" {
		return bookmarks
	}
	results := Fuzzy(bookmarks, query)
	out := make([]model.Bookmark, len(results))
	for i, r := range results {
		out[i] = r.Bookmark
	}
	return out
}
