package api_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gotest.tools/v3/assert"

	"github.com/nikbrunner/bmsync/internal/api"
)

// fakeRealtime runs script against the first connection it accepts.
func fakeRealtime(t *testing.T, script func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{api.Subprotocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		script(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/graphql"
}

func readMessage(t *testing.T, conn *websocket.Conn) api.Message {
	t.Helper()
	var msg api.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Errorf("read failed: %v", err)
	}
	return msg
}

func acceptSubscriptions(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	if msg := readMessage(t, conn); msg.Type != api.MsgConnectionInit {
		t.Errorf("expected connection_init, got %q", msg.Type)
	}
	ack, _ := json.Marshal(api.AckPayload{ConnectionTimeoutMs: 60000})
	_ = conn.WriteJSON(api.Message{Type: api.MsgConnectionAck, Payload: ack})

	var ids []string
	for range api.EventKinds {
		msg := readMessage(t, conn)
		if msg.Type != api.MsgStart {
			t.Errorf("expected start, got %q", msg.Type)
		}
		var payload api.StartPayload
		_ = json.Unmarshal(msg.Payload, &payload)
		if payload.Extensions.Authorization.APIKey != "test-key" {
			t.Errorf("start without api key: %+v", payload)
		}
		var req api.SubscriptionRequest
		_ = json.Unmarshal([]byte(payload.Data), &req)
		if !strings.Contains(req.Query, msg.ID) {
			t.Errorf("subscription %q carries wrong document %q", msg.ID, req.Query)
		}
		_ = conn.WriteJSON(api.Message{ID: msg.ID, Type: api.MsgStartAck})
		ids = append(ids, msg.ID)
	}
	return ids
}

func newRealtimeClient(t *testing.T, endpoint string) *api.RealtimeClient {
	t.Helper()
	c, err := api.NewRealtimeClient(endpoint, "", "test-key", nil)
	assert.NilError(t, err)
	return c
}

func TestRealtimeClient_DeliversEvents(t *testing.T) {
	stopped := make(chan []string, 1)
	endpoint := fakeRealtime(t, func(conn *websocket.Conn, r *http.Request) {
		raw, err := base64.StdEncoding.DecodeString(r.URL.Query().Get("header"))
		if err != nil {
			t.Errorf("bad header param: %v", err)
		}
		var auth api.AuthHeader
		_ = json.Unmarshal(raw, &auth)
		if auth.APIKey != "test-key" || auth.Host == "" {
			t.Errorf("unexpected auth header %+v", auth)
		}
		if r.URL.Query().Get("payload") != "e30=" {
			t.Errorf("unexpected payload param %q", r.URL.Query().Get("payload"))
		}

		acceptSubscriptions(t, conn)
		_ = conn.WriteJSON(api.Message{Type: api.MsgKeepAlive})
		_ = conn.WriteJSON(api.Message{
			ID:      "onCreateBookmark",
			Type:    api.MsgData,
			Payload: json.RawMessage(`{"data":{"onCreateBookmark":null}}`),
		})
		_ = conn.WriteJSON(api.Message{
			ID:      "onCreateBookmark",
			Type:    api.MsgData,
			Payload: json.RawMessage(`{"data":{"onCreateBookmark":{"id":"1","title":"A","url":"http://a"}}}`),
		})
		_ = conn.WriteJSON(api.Message{
			ID:      "onBatchDeleteBookmarks",
			Type:    api.MsgData,
			Payload: json.RawMessage(`{"data":{"onBatchDeleteBookmarks":[{"id":"1"},{"id":"2"}]}}`),
		})

		var ids []string
		for {
			var msg api.Message
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			if msg.Type == api.MsgStop {
				ids = append(ids, msg.ID)
			}
		}
		stopped <- ids
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := newRealtimeClient(t, endpoint).Subscribe(ctx)
	assert.NilError(t, err)

	first := <-stream.Events()
	assert.Equal(t, first.Kind, api.EventCreated)
	assert.Equal(t, first.Bookmark.ID, "1")

	second := <-stream.Events()
	assert.Equal(t, second.Kind, api.EventBatchDeleted)
	assert.DeepEqual(t, second.DeletedIDs(), []string{"1", "2"})

	assert.NilError(t, stream.Close())

	select {
	case ids := <-stopped:
		assert.Equal(t, len(ids), len(api.EventKinds))
	case <-ctx.Done():
		t.Fatal("server never saw the connection close")
	}

	for range stream.Events() {
	}
	assert.NilError(t, stream.Err())
}

func TestRealtimeClient_ConnectionErrorDuringHandshake(t *testing.T) {
	endpoint := fakeRealtime(t, func(conn *websocket.Conn, _ *http.Request) {
		readMessage(t, conn)
		_ = conn.WriteJSON(api.Message{
			Type:    api.MsgConnectionError,
			Payload: json.RawMessage(`{"errors":[{"errorType":"UnauthorizedException","message":"bad key"}]}`),
		})
	})

	_, err := newRealtimeClient(t, endpoint).Subscribe(context.Background())
	assert.Assert(t, errors.Is(err, api.ErrNetwork))
	assert.ErrorContains(t, err, "bad key")
}

func TestRealtimeClient_ServerDropEndsFeed(t *testing.T) {
	endpoint := fakeRealtime(t, func(conn *websocket.Conn, _ *http.Request) {
		acceptSubscriptions(t, conn)
	})

	stream, err := newRealtimeClient(t, endpoint).Subscribe(context.Background())
	assert.NilError(t, err)
	defer stream.Close()

	for range stream.Events() {
	}
	assert.Assert(t, errors.Is(stream.Err(), api.ErrNetwork))
}

func TestRealtimeClient_SubscribeWaitsForEveryStartAck(t *testing.T) {
	var allAcked atomic.Bool
	endpoint := fakeRealtime(t, func(conn *websocket.Conn, _ *http.Request) {
		readMessage(t, conn)
		_ = conn.WriteJSON(api.Message{Type: api.MsgConnectionAck})

		var ids []string
		for range api.EventKinds {
			ids = append(ids, readMessage(t, conn).ID)
		}
		time.Sleep(50 * time.Millisecond)
		for i, id := range ids {
			if i == len(ids)-1 {
				allAcked.Store(true)
			}
			_ = conn.WriteJSON(api.Message{ID: id, Type: api.MsgStartAck})
			if id == "onCreateBookmark" {
				_ = conn.WriteJSON(api.Message{
					ID:      id,
					Type:    api.MsgData,
					Payload: json.RawMessage(`{"data":{"onCreateBookmark":{"id":"early","title":"E","url":"http://e"}}}`),
				})
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	stream, err := newRealtimeClient(t, endpoint).Subscribe(context.Background())
	assert.NilError(t, err)
	defer stream.Close()
	assert.Assert(t, allAcked.Load(), "Subscribe returned before every start_ack")

	select {
	case ev := <-stream.Events():
		assert.Equal(t, ev.Kind, api.EventCreated)
		assert.Equal(t, ev.Bookmark.ID, "early")
	case <-time.After(2 * time.Second):
		t.Fatal("notification sent between acks was lost")
	}
}

func TestRealtimeClient_RejectedSubscription(t *testing.T) {
	endpoint := fakeRealtime(t, func(conn *websocket.Conn, _ *http.Request) {
		readMessage(t, conn)
		_ = conn.WriteJSON(api.Message{Type: api.MsgConnectionAck})
		first := readMessage(t, conn)
		_ = conn.WriteJSON(api.Message{
			ID:      first.ID,
			Type:    api.MsgError,
			Payload: json.RawMessage(`{"errors":[{"errorType":"UnauthorizedException","message":"not allowed"}]}`),
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	_, err := newRealtimeClient(t, endpoint).Subscribe(context.Background())
	assert.Assert(t, errors.Is(err, api.ErrNetwork))
	assert.ErrorContains(t, err, "not allowed")
}
