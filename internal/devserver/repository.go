// Package devserver is a local stand-in for the bookmarks GraphQL API. It
// serves the request endpoint and the realtime push endpoint over one
// HTTP listener, backed by memory or a DynamoDB table.
package devserver

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/nikbrunner/bmsync/internal/model"
)

// ErrNotFound is returned when an edit targets an unknown id.
var ErrNotFound = errors.New("bookmark not found")

// Repository stores bookmarks for the dev server.
type Repository interface {
	List(ctx context.Context) ([]model.Bookmark, error)
	Create(ctx context.Context, title, url string) (model.Bookmark, error)
	Update(ctx context.Context, id, title, url string) (model.Bookmark, error)
	// Delete reports false when nothing with id existed.
	Delete(ctx context.Context, id string) (bool, error)
	// BatchDelete returns the ids that existed and were removed.
	BatchDelete(ctx context.Context, ids []string) ([]string, error)
}

// MemoryRepository keeps bookmarks in insertion order in memory.
type MemoryRepository struct {
	mu        sync.Mutex
	bookmarks []model.Bookmark
}

// NewMemoryRepository creates a repository seeded with bookmarks.
func NewMemoryRepository(seed ...model.Bookmark) *MemoryRepository {
	return &MemoryRepository{bookmarks: slices.Clone(seed)}
}

func (r *MemoryRepository) List(context.Context) ([]model.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Bookmark, len(r.bookmarks))
	copy(out, r.bookmarks)
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, title, url string) (model.Bookmark, error) {
	b := model.NewBookmark(model.NewBookmarkParams{Title: title, URL: url})
	r.mu.Lock()
	r.bookmarks = append(r.bookmarks, b)
	r.mu.Unlock()
	return b, nil
}

func (r *MemoryRepository) Update(_ context.Context, id, title, url string) (model.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return model.Bookmark{}, ErrNotFound
	}
	r.bookmarks[i].Title = title
	r.bookmarks[i].URL = url
	return r.bookmarks[i], nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return false, nil
	}
	r.bookmarks = slices.Delete(r.bookmarks, i, i+1)
	return true, nil
}

func (r *MemoryRepository) BatchDelete(_ context.Context, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := []string{}
	for _, id := range ids {
		if i := r.index(id); i >= 0 {
			r.bookmarks = slices.Delete(r.bookmarks, i, i+1)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (r *MemoryRepository) index(id string) int {
	return slices.IndexFunc(r.bookmarks, func(b model.Bookmark) bool { return b.ID == id })
}
