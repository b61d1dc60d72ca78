package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/nikbrunner/bmsync/internal/api"
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/store"
)

type fakeStream struct {
	events chan api.Event
	err    error
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan api.Event)}
}

func (f *fakeStream) Events() <-chan api.Event { return f.events }
func (f *fakeStream) Err() error               { return f.err }
func (f *fakeStream) Close() error             { return nil }

// drop ends the stream as if the connection failed.
func (f *fakeStream) drop(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.events)
	})
}

// fakeSubscriber hands out streams in order; a nil entry fails to connect.
type fakeSubscriber struct {
	mu      sync.Mutex
	streams []*fakeStream
	calls   int
}

func (f *fakeSubscriber) Subscribe(context.Context) (api.EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.streams) == 0 {
		return nil, errOffline
	}
	next := f.streams[0]
	f.streams = f.streams[1:]
	if next == nil {
		return nil, errOffline
	}
	return next, nil
}

func (f *fakeSubscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestStore_ListenAppliesAndReconnects(t *testing.T) {
	first := newFakeStream()
	second := newFakeStream()
	sub := &fakeSubscriber{streams: []*fakeStream{nil, first, second}}

	s := store.New(newFakeRemote(), store.WithReconnect(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Listen(ctx, sub) }()

	first.events <- api.Event{Kind: api.EventCreated, Bookmark: bmA}
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if len(s.Bookmarks()) == 1 && s.Snapshot().Live {
			return poll.Success()
		}
		return poll.Continue("waiting for first event")
	}, poll.WithTimeout(2*time.Second))

	first.drop(errors.New("connection reset"))

	second.events <- api.Event{Kind: api.EventEdited, Bookmark: model.Bookmark{ID: "1", Title: "A2", URL: "http://a2"}}
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if b := s.Bookmarks(); len(b) == 1 && b[0].Title == "A2" {
			return poll.Success()
		}
		return poll.Continue("waiting for edit on second connection")
	}, poll.WithTimeout(2*time.Second))

	cancel()
	select {
	case err := <-done:
		assert.Assert(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}

	assert.Equal(t, sub.callCount(), 3)
	assert.Assert(t, !s.Snapshot().Live)
}

func TestStore_ListenStopsWhileWaitingToReconnect(t *testing.T) {
	sub := &fakeSubscriber{}
	s := store.New(newFakeRemote(), store.WithReconnect(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Listen(ctx, sub) }()

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if sub.callCount() > 0 {
			return poll.Success()
		}
		return poll.Continue("waiting for first attempt")
	}, poll.WithTimeout(2*time.Second))
	cancel()

	select {
	case err := <-done:
		assert.Assert(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}
