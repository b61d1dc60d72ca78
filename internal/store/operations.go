package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/api"
	"github.com/nikbrunner/bmsync/internal/model"
)

// FetchAll replaces the collection with the remote one. On failure the
// collection is left as it was.
func (s *Store) FetchAll(ctx context.Context) ([]model.Bookmark, error) {
	s.setFlag(&s.fetching, true)
	defer s.setFlag(&s.fetching, false)

	bookmarks, err := s.remote.Bookmarks(ctx)
	if err != nil {
		s.logger.Error("failed to fetch bookmarks", zap.Error(err))
		return nil, err
	}

	s.update(func() bool {
		s.collection.Replace(bookmarks)
		return true
	})
	s.logger.Debug("fetched bookmarks", zap.Int("count", len(bookmarks)))
	return bookmarks, nil
}

// Create asks the server to create a bookmark and prepends the result.
func (s *Store) Create(ctx context.Context, title, url string) (model.Bookmark, error) {
	s.setFlag(&s.busy, true)
	defer s.setFlag(&s.busy, false)

	b, err := s.remote.CreateBookmark(ctx, title, url)
	if err != nil {
		s.logger.Error("failed to create bookmark", zap.String("url", url), zap.Error(err))
		return model.Bookmark{}, err
	}

	s.update(func() bool {
		if s.suppressEchoes {
			// The echo got here first and already inserted it.
			if s.collection.GetBookmarkByID(b.ID) != nil {
				return false
			}
			s.pendingEchoes[b.ID]++
		}
		s.collection.Prepend(b)
		return true
	})
	return b, nil
}

// Edit replaces title and url of the bookmark with id. A bookmark that is
// not present locally is not inserted.
func (s *Store) Edit(ctx context.Context, id, title, url string) (model.Bookmark, error) {
	s.setFlag(&s.busy, true)
	defer s.setFlag(&s.busy, false)

	b, err := s.remote.EditBookmark(ctx, id, title, url)
	if err != nil {
		s.logger.Error("failed to edit bookmark", zap.String("id", id), zap.Error(err))
		return model.Bookmark{}, err
	}

	s.update(func() bool {
		return s.collection.Overwrite(b)
	})
	return b, nil
}

// DeleteOne deletes the bookmark with id and returns the deleted id.
func (s *Store) DeleteOne(ctx context.Context, id string) (string, error) {
	s.setFlag(&s.busy, true)
	defer s.setFlag(&s.busy, false)

	deleted, err := s.remote.DeleteBookmark(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete bookmark", zap.String("id", id), zap.Error(err))
		return "", err
	}

	s.update(func() bool {
		return s.collection.Remove(deleted.ID) > 0
	})
	return deleted.ID, nil
}

// DeleteSelected deletes every selected id in one request and removes the
// ids the server confirms. Selection mode is exited whatever the outcome.
func (s *Store) DeleteSelected(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	ids := s.selection.IDs()
	s.mu.Unlock()

	defer s.ExitSelectionMode()

	if len(ids) == 0 {
		return []string{}, nil
	}

	s.setFlag(&s.busy, true)
	defer s.setFlag(&s.busy, false)

	deleted, err := s.remote.BatchDeleteBookmarks(ctx, ids)
	if err != nil {
		s.logger.Error("failed to delete selected bookmarks", zap.Strings("ids", ids), zap.Error(err))
		return nil, err
	}

	removedIDs := model.DeletedIDs(deleted)
	s.update(func() bool {
		return s.collection.RemoveAll(removedIDs) > 0
	})
	return removedIDs, nil
}

// EnterSelectionMode activates selection mode with an empty selection.
func (s *Store) EnterSelectionMode() {
	s.mu.Lock()
	s.selection.Enter()
	s.mu.Unlock()
	s.notify()
}

// ExitSelectionMode deactivates selection mode and clears the selection.
func (s *Store) ExitSelectionMode() {
	s.mu.Lock()
	s.selection.Exit()
	s.mu.Unlock()
	s.notify()
}

// ToggleSelection adds id to the selection, or removes it if present.
// The id is not checked against the collection.
func (s *Store) ToggleSelection(id string) {
	s.mu.Lock()
	s.selection.Toggle(id)
	s.mu.Unlock()
	s.notify()
}

// Apply applies a push notification with the same logic as the matching
// request's success path.
func (s *Store) Apply(ev api.Event) {
	s.update(func() bool {
		switch ev.Kind {
		case api.EventCreated:
			if s.suppressEchoes && s.pendingEchoes[ev.Bookmark.ID] > 0 {
				s.pendingEchoes[ev.Bookmark.ID]--
				if s.pendingEchoes[ev.Bookmark.ID] == 0 {
					delete(s.pendingEchoes, ev.Bookmark.ID)
				}
				s.logger.Debug("dropped create echo", zap.String("id", ev.Bookmark.ID))
				return false
			}
			s.collection.Prepend(ev.Bookmark)
			return true
		case api.EventEdited:
			return s.collection.Overwrite(ev.Bookmark)
		case api.EventDeleted, api.EventBatchDeleted:
			return s.collection.RemoveAll(ev.DeletedIDs()) > 0
		default:
			s.logger.Warn("ignoring unknown event", zap.Stringer("kind", ev.Kind))
			return false
		}
	})
}
