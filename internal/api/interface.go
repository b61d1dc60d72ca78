package api

import (
	"context"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Remote is the request side of the bookmarks API.
type Remote interface {
	Bookmarks(ctx context.Context) ([]model.Bookmark, error)
	CreateBookmark(ctx context.Context, title, url string) (model.Bookmark, error)
	EditBookmark(ctx context.Context, id, title, url string) (model.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) (model.DeletedBookmark, error)
	BatchDeleteBookmarks(ctx context.Context, ids []string) ([]model.DeletedBookmark, error)
}

// Subscriber opens the push side of the bookmarks API.
type Subscriber interface {
	Subscribe(ctx context.Context) (EventStream, error)
}

// EventStream delivers push notifications until it fails or is closed.
// Events is closed when the stream ends; Err then reports why (nil after Close).
type EventStream interface {
	Events() <-chan Event
	Err() error
	Close() error
}
