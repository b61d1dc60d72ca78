package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Khan/genqlient/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/nikbrunner/bmsync/internal/model"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	apiKeyHeader       = "x-api-key"
)

var errNullResult = errors.New("null result")

// Client talks to the GraphQL endpoint over HTTPS with API key auth.
type Client struct {
	Endpoint   *url.URL
	APIKey     string
	HTTPClient *http.Client

	timeout time.Duration
	gql     graphql.Client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Nil keeps the default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// WithTimeout sets the request timeout. A caller supplied HTTP client is
// copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a new GraphQL API client.
func NewClient(endpoint, apiKey string, opts ...Option) (*Client, error) {
	parsedURL, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}

	c := &Client{
		Endpoint: parsedURL,
		APIKey:   apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.timeout > 0 {
		hc := *c.HTTPClient
		hc.Timeout = c.timeout
		c.HTTPClient = &hc
	}

	c.gql = graphql.NewClient(c.Endpoint.String(), &apiKeyDoer{key: apiKey, client: c.HTTPClient})
	return c, nil
}

// apiKeyDoer adds the API key header and turns non-2xx answers into
// APIError before the GraphQL layer reads the body.
type apiKeyDoer struct {
	key    string
	client *http.Client
}

func (d *apiKeyDoer) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set(apiKeyHeader, d.key)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(msg) == 0 {
		msg = []byte(resp.Status)
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
}

// do runs one named operation and decodes the "data" member into v.
func (c *Client) do(ctx context.Context, opName, query string, variables map[string]any, v any) error {
	req := &graphql.Request{OpName: opName, Query: query}
	if variables != nil {
		req.Variables = variables
	}

	err := c.gql.MakeRequest(ctx, req, &graphql.Response{Data: v})
	if err == nil {
		return nil
	}

	var gqlErrs gqlerror.List
	if errors.As(err, &gqlErrs) {
		return graphQLErrorsFrom(gqlErrs)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("request failed: %w", err)
}

// graphQLErrorsFrom keeps the message and the errorType extension of
// every entry.
func graphQLErrorsFrom(list gqlerror.List) GraphQLErrors {
	errs := make(GraphQLErrors, 0, len(list))
	for _, e := range list {
		if e == nil {
			continue
		}
		ge := GraphQLError{Message: e.Message}
		if t, ok := e.Extensions["errorType"].(string); ok {
			ge.ErrorType = t
		}
		errs = append(errs, ge)
	}
	return errs
}

// Bookmarks fetches the full bookmark collection. Null entries are skipped.
func (c *Client) Bookmarks(ctx context.Context) ([]model.Bookmark, error) {
	var data struct {
		Bookmarks []*model.Bookmark `json:"bookmarks"`
	}
	if err := c.do(ctx, "Bookmarks", BookmarksQuery, nil, &data); err != nil {
		return nil, wrap("bookmarks", err)
	}

	bookmarks := make([]model.Bookmark, 0, len(data.Bookmarks))
	for _, b := range data.Bookmarks {
		if b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	return bookmarks, nil
}

// CreateBookmark creates a bookmark; the server assigns its id.
func (c *Client) CreateBookmark(ctx context.Context, title, bookmarkURL string) (model.Bookmark, error) {
	var data struct {
		CreateBookmark *model.Bookmark `json:"createBookmark"`
	}
	vars := map[string]any{"title": title, "url": bookmarkURL}
	if err := c.do(ctx, "CreateBookmark", CreateBookmarkMutation, vars, &data); err != nil {
		return model.Bookmark{}, wrap("createBookmark", err)
	}
	if data.CreateBookmark == nil {
		return model.Bookmark{}, wrap("createBookmark", errNullResult)
	}
	return *data.CreateBookmark, nil
}

// EditBookmark replaces title and url of the bookmark with the given id.
func (c *Client) EditBookmark(ctx context.Context, id, title, bookmarkURL string) (model.Bookmark, error) {
	var data struct {
		EditBookmark *model.Bookmark `json:"editBookmark"`
	}
	vars := map[string]any{"id": id, "title": title, "url": bookmarkURL}
	if err := c.do(ctx, "EditBookmark", EditBookmarkMutation, vars, &data); err != nil {
		return model.Bookmark{}, wrap("editBookmark", err)
	}
	if data.EditBookmark == nil {
		return model.Bookmark{}, wrap("editBookmark", errNullResult)
	}
	return *data.EditBookmark, nil
}

// DeleteBookmark deletes a bookmark by id.
func (c *Client) DeleteBookmark(ctx context.Context, id string) (model.DeletedBookmark, error) {
	var data struct {
		DeleteBookmark *model.DeletedBookmark `json:"deleteBookmark"`
	}
	if err := c.do(ctx, "DeleteBookmark", DeleteBookmarkMutation, map[string]any{"id": id}, &data); err != nil {
		return model.DeletedBookmark{}, wrap("deleteBookmark", err)
	}
	if data.DeleteBookmark == nil {
		return model.DeletedBookmark{}, wrap("deleteBookmark", errNullResult)
	}
	return *data.DeleteBookmark, nil
}

// BatchDeleteBookmarks deletes several bookmarks in one request and returns
// the ids the server reports as deleted.
func (c *Client) BatchDeleteBookmarks(ctx context.Context, ids []string) ([]model.DeletedBookmark, error) {
	var data struct {
		BatchDeleteBookmarks []*model.DeletedBookmark `json:"batchDeleteBookmarks"`
	}
	if ids == nil {
		ids = []string{}
	}
	if err := c.do(ctx, "BatchDeleteBookmarks", BatchDeleteBookmarksMutation, map[string]any{"ids": ids}, &data); err != nil {
		return nil, wrap("batchDeleteBookmarks", err)
	}

	deleted := make([]model.DeletedBookmark, 0, len(data.BatchDeleteBookmarks))
	for _, d := range data.BatchDeleteBookmarks {
		if d != nil {
			deleted = append(deleted, *d)
		}
	}
	return deleted, nil
}
