// Package store holds the client-side bookmark cache and keeps it in sync
// with the remote API through request results and push notifications.
package store

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/api"
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/storage"
)

// State is a point-in-time copy of the store for rendering.
type State struct {
	Bookmarks []model.Bookmark
	Selection model.Selection
	Fetching  bool
	Busy      bool
	Live      bool
}

// Store is the owned bookmark state. All mutation goes through its methods.
// Remote calls run outside the lock, so results and notifications interleave
// in whatever order they arrive.
type Store struct {
	remote         api.Remote
	logger         *zap.Logger
	cache          storage.Storage
	suppressEchoes bool
	reconnectMin   time.Duration
	reconnectMax   time.Duration

	mu         sync.Mutex
	collection *model.Collection
	selection  model.Selection
	fetching   bool
	busy       bool
	live       bool
	// ids created by this client whose onCreateBookmark echo is still due
	pendingEchoes map[string]int

	persistMu sync.Mutex
	changes   chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache persists the collection after every change and enables Restore.
func WithCache(cache storage.Storage) Option {
	return func(s *Store) {
		s.cache = cache
	}
}

// WithEchoSuppression drops the onCreateBookmark notification that echoes a
// create this store already applied. Without it such a bookmark is prepended
// twice when the server notifies the initiator.
func WithEchoSuppression() Option {
	return func(s *Store) {
		s.suppressEchoes = true
	}
}

// WithReconnect bounds the delay between push channel reconnect attempts.
func WithReconnect(initial, maximum time.Duration) Option {
	return func(s *Store) {
		if initial > 0 {
			s.reconnectMin = initial
		}
		if maximum > 0 {
			s.reconnectMax = maximum
		}
	}
}

// New creates an empty store backed by remote.
func New(remote api.Remote, opts ...Option) *Store {
	s := &Store{
		remote:        remote,
		logger:        zap.NewNop(),
		reconnectMin:  500 * time.Millisecond,
		reconnectMax:  time.Minute,
		collection:    model.NewCollection(),
		selection:     model.NewSelection(),
		pendingEchoes: make(map[string]int),
		changes:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Changes signals that the state changed since the last receive.
// Signals are coalesced; receivers should read a fresh Snapshot.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Bookmarks: s.collection.Clone(),
		Selection: s.selection.Clone(),
		Fetching:  s.fetching,
		Busy:      s.busy,
		Live:      s.live,
	}
}

// Bookmarks returns a copy of the collection.
func (s *Store) Bookmarks() []model.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.Clone()
}

// update runs fn under the lock, then signals listeners and persists when
// fn reports a change.
func (s *Store) update(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	s.mu.Unlock()
	if changed {
		s.notify()
		s.persist()
	}
}

func (s *Store) setFlag(flag *bool, v bool) {
	s.mu.Lock()
	*flag = v
	s.mu.Unlock()
	s.notify()
}

// Restore seeds the collection from the cache. It only applies before the
// first fetch has filled the collection.
func (s *Store) Restore() error {
	if s.cache == nil {
		return nil
	}
	bookmarks, err := s.cache.Load()
	if err != nil {
		return fmt.Errorf("failed to load cached bookmarks: %w", err)
	}

	s.mu.Lock()
	seeded := false
	if s.collection.Len() == 0 && len(bookmarks) > 0 {
		s.collection.Replace(bookmarks)
		seeded = true
	}
	s.mu.Unlock()

	if seeded {
		s.logger.Debug("restored cached bookmarks", zap.Int("count", len(bookmarks)))
		s.notify()
	}
	return nil
}

func (s *Store) persist() {
	if s.cache == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	bookmarks := s.Bookmarks()
	if err := s.cache.Save(bookmarks); err != nil {
		s.logger.Warn("failed to save bookmark cache", zap.Error(err))
	}
}
