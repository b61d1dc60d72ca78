package model

import "github.com/google/uuid"

// Bookmark is a titled URL record. The ID is assigned by the server and never
// changes; Title and URL are replaced by edits.
type Bookmark struct {
	ID    string `json:"id" dynamodbav:"id"`
	Title string `json:"title" dynamodbav:"title"`
	URL   string `json:"url" dynamodbav:"url"`
}

// DeletedBookmark is what the server returns for delete and batch delete.
type DeletedBookmark struct {
	ID string `json:"id" dynamodbav:"id"`
}

// NewBookmarkParams holds parameters for creating a new Bookmark.
type NewBookmarkParams struct {
	Title string
	URL   string
}

// NewBookmark creates a Bookmark with a random UUID. Only the dev server
// assigns ids; clients never do.
func NewBookmark(params NewBookmarkParams) Bookmark {
	return Bookmark{
		ID:    uuid.NewString(),
		Title: params.Title,
		URL:   params.URL,
	}
}

// DeletedIDs flattens delete results into their ids.
func DeletedIDs(deleted []DeletedBookmark) []string {
	ids := make([]string, 0, len(deleted))
	for _, d := range deleted {
		ids = append(ids, d.ID)
	}
	return ids
}
