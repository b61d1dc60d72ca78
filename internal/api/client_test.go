package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/nikbrunner/bmsync/internal/api"
	"github.com/nikbrunner/bmsync/internal/model"
)

type recordedRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// newGraphQLServer answers every request with body and records what it got.
func newGraphQLServer(t *testing.T, status int, body string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	got := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key header, got %q", r.Header.Get("x-api-key"))
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newClient(t *testing.T, srv *httptest.Server) *api.Client {
	t.Helper()
	c, err := api.NewClient(srv.URL+"/graphql", "test-key")
	assert.NilError(t, err)
	return c
}

func TestNewClient_InvalidEndpoint(t *testing.T) {
	_, err := api.NewClient("not a url", "key")
	assert.ErrorContains(t, err, "failed to parse endpoint")
}

func TestNewClient_WithTimeout(t *testing.T) {
	c, err := api.NewClient("http://localhost/graphql", "key", api.WithTimeout(3*time.Second))
	assert.NilError(t, err)
	assert.Equal(t, c.HTTPClient.Timeout, 3*time.Second)
}

func TestNewClient_TimeoutLeavesCallerClientAlone(t *testing.T) {
	own := &http.Client{Timeout: time.Minute}
	c, err := api.NewClient("http://localhost/graphql", "key",
		api.WithHTTPClient(own), api.WithTimeout(3*time.Second))
	assert.NilError(t, err)
	assert.Equal(t, c.HTTPClient.Timeout, 3*time.Second)
	assert.Equal(t, own.Timeout, time.Minute)
}

func TestNewClient_NilHTTPClient(t *testing.T) {
	c, err := api.NewClient("http://localhost/graphql", "key",
		api.WithHTTPClient(nil), api.WithTimeout(3*time.Second))
	assert.NilError(t, err)
	assert.Assert(t, c.HTTPClient != nil)
	assert.Equal(t, c.HTTPClient.Timeout, 3*time.Second)
}

func TestClient_ErrorTypeExtension(t *testing.T) {
	srv, _ := newGraphQLServer(t, http.StatusOK,
		`{"data":null,"errors":[{"message":"no bookmark with id 9","extensions":{"errorType":"NotFound"}}]}`)

	_, err := newClient(t, srv).EditBookmark(context.Background(), "9", "t", "u")
	var gqlErrs api.GraphQLErrors
	assert.Assert(t, errors.As(err, &gqlErrs))
	assert.DeepEqual(t, gqlErrs, api.GraphQLErrors{{ErrorType: "NotFound", Message: "no bookmark with id 9"}})
}

func TestClient_Bookmarks(t *testing.T) {
	srv, got := newGraphQLServer(t, http.StatusOK, `{"data":{"bookmarks":[
		{"id":"1","title":"A","url":"http://a"},
		null,
		{"id":"2","title":"B","url":"http://b"}
	]}}`)

	bookmarks, err := newClient(t, srv).Bookmarks(context.Background())
	assert.NilError(t, err)
	assert.DeepEqual(t, bookmarks, []model.Bookmark{
		{ID: "1", Title: "A", URL: "http://a"},
		{ID: "2", Title: "B", URL: "http://b"},
	})
	assert.Equal(t, got.Query, api.BookmarksQuery)
	assert.Equal(t, got.OperationName, "Bookmarks")
}

func TestClient_CreateBookmark(t *testing.T) {
	srv, got := newGraphQLServer(t, http.StatusOK,
		`{"data":{"createBookmark":{"id":"new","title":"Go","url":"https://go.dev"}}}`)

	b, err := newClient(t, srv).CreateBookmark(context.Background(), "Go", "https://go.dev")
	assert.NilError(t, err)
	assert.Equal(t, b, model.Bookmark{ID: "new", Title: "Go", URL: "https://go.dev"})
	assert.Equal(t, got.Query, api.CreateBookmarkMutation)
	assert.DeepEqual(t, got.Variables, map[string]any{"title": "Go", "url": "https://go.dev"})
}

func TestClient_EditBookmark(t *testing.T) {
	srv, got := newGraphQLServer(t, http.StatusOK,
		`{"data":{"editBookmark":{"id":"1","title":"B","url":"http://b"}}}`)

	b, err := newClient(t, srv).EditBookmark(context.Background(), "1", "B", "http://b")
	assert.NilError(t, err)
	assert.Equal(t, b, model.Bookmark{ID: "1", Title: "B", URL: "http://b"})
	assert.DeepEqual(t, got.Variables, map[string]any{"id": "1", "title": "B", "url": "http://b"})
}

func TestClient_DeleteBookmark(t *testing.T) {
	srv, got := newGraphQLServer(t, http.StatusOK, `{"data":{"deleteBookmark":{"id":"1"}}}`)

	d, err := newClient(t, srv).DeleteBookmark(context.Background(), "1")
	assert.NilError(t, err)
	assert.Equal(t, d.ID, "1")
	assert.Equal(t, got.Query, api.DeleteBookmarkMutation)
}

func TestClient_BatchDeleteBookmarks(t *testing.T) {
	srv, got := newGraphQLServer(t, http.StatusOK,
		`{"data":{"batchDeleteBookmarks":[{"id":"1"},null,{"id":"2"}]}}`)

	deleted, err := newClient(t, srv).BatchDeleteBookmarks(context.Background(), []string{"1", "2"})
	assert.NilError(t, err)
	assert.DeepEqual(t, model.DeletedIDs(deleted), []string{"1", "2"})
	assert.DeepEqual(t, got.Variables, map[string]any{"ids": []any{"1", "2"}})
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "http status",
			status: http.StatusUnauthorized,
			body:   `{"errors":[{"errorType":"UnauthorizedException","message":"You are not authorized"}]}`,
			want:   "status: 401",
		},
		{
			name:   "graphql errors",
			status: http.StatusOK,
			body:   `{"data":null,"errors":[{"errorType":"DynamoDB:ConditionalCheckFailedException","message":"nope"}]}`,
			want:   "nope",
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"data":`,
			want:   "request failed",
		},
		{
			name:   "null result",
			status: http.StatusOK,
			body:   `{"data":{"editBookmark":null}}`,
			want:   "null result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGraphQLServer(t, tt.status, tt.body)

			_, err := newClient(t, srv).EditBookmark(context.Background(), "1", "t", "u")
			assert.Assert(t, errors.Is(err, api.ErrNetwork), "got %v", err)
			assert.ErrorContains(t, err, tt.want)

			var ne *api.NetworkError
			assert.Assert(t, errors.As(err, &ne))
			assert.Equal(t, ne.Op, "editBookmark")
		})
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/graphql"
	srv.Close()

	c, err := api.NewClient(endpoint, "test-key")
	assert.NilError(t, err)

	_, err = c.Bookmarks(context.Background())
	assert.Assert(t, errors.Is(err, api.ErrNetwork))
}

func TestClient_ContextCancelled(t *testing.T) {
	srv, _ := newGraphQLServer(t, http.StatusOK, `{"data":{"bookmarks":[]}}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(t, srv).Bookmarks(ctx)
	assert.Assert(t, errors.Is(err, api.ErrNetwork))
	assert.Assert(t, errors.Is(err, context.Canceled))
}

func TestRealtimeURLFromEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{
			endpoint: "https://abc.appsync-api.eu-central-1.amazonaws.com/graphql",
			want:     "wss://abc.appsync-realtime-api.eu-central-1.amazonaws.com/graphql",
		},
		{
			endpoint: "http://localhost:8080/graphql",
			want:     "ws://localhost:8080/graphql",
		},
		{
			endpoint: "ftp://example.com/graphql",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := api.RealtimeURLFromEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Assert(t, err != nil)
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, ok, err := api.DecodeEvent(api.EventBatchDeleted, json.RawMessage(`[{"id":"1"},null,{"id":"2"}]`))
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.DeepEqual(t, ev.DeletedIDs(), []string{"1", "2"})

	_, ok, err = api.DecodeEvent(api.EventCreated, json.RawMessage(`null`))
	assert.NilError(t, err)
	assert.Assert(t, !ok)

	ev, ok, err = api.DecodeEvent(api.EventEdited, json.RawMessage(`{"id":"1","title":"T","url":"u"}`))
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Check(t, is.Equal(ev.Bookmark.Title, "T"))
}

func TestKindForField(t *testing.T) {
	for _, k := range api.EventKinds {
		got, ok := api.KindForField(k.Field())
		assert.Assert(t, ok)
		assert.Equal(t, got, k)
	}
	_, ok := api.KindForField("onSomethingElse")
	assert.Assert(t, !ok)
}
