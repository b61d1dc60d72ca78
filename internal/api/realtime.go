package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subprotocol is the WebSocket subprotocol spoken by the realtime endpoint.
const Subprotocol = "graphql-ws"

// Realtime message types.
const (
	MsgConnectionInit  = "connection_init"
	MsgConnectionAck   = "connection_ack"
	MsgConnectionError = "connection_error"
	MsgKeepAlive       = "ka"
	MsgStart           = "start"
	MsgStartAck        = "start_ack"
	MsgData            = "data"
	MsgError           = "error"
	MsgComplete        = "complete"
	MsgStop            = "stop"
)

const (
	// DefaultConnectionTimeout applies when connection_ack carries no timeout.
	DefaultConnectionTimeout = 300 * time.Second

	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second

	// emptyPayload is base64("{}").
	emptyPayload = "e30="
)

// Message is the envelope of every realtime frame.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthHeader authorizes the connection and each subscription with an API key.
type AuthHeader struct {
	Host   string `json:"host"`
	APIKey string `json:"x-api-key"`
}

// StartPayload is the payload of a start message. Data holds the JSON
// encoded {query, variables} request as a string.
type StartPayload struct {
	Data       string          `json:"data"`
	Extensions StartExtensions `json:"extensions"`
}

// StartExtensions carries the per-subscription authorization.
type StartExtensions struct {
	Authorization AuthHeader `json:"authorization"`
}

// AckPayload is the payload of connection_ack.
type AckPayload struct {
	ConnectionTimeoutMs int `json:"connectionTimeoutMs"`
}

// DataPayload is the payload of a data message.
type DataPayload struct {
	Data map[string]json.RawMessage `json:"data"`
}

// ErrorPayload is the payload of error and connection_error messages.
type ErrorPayload struct {
	Errors GraphQLErrors `json:"errors"`
}

// SubscriptionRequest is what StartPayload.Data decodes to.
type SubscriptionRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables"`
}

// RealtimeURLFromEndpoint derives the realtime URL from a GraphQL endpoint:
// https becomes wss, http becomes ws, and an appsync-api host is swapped
// for its appsync-realtime-api counterpart. The path is kept.
func RealtimeURLFromEndpoint(endpoint string) (string, error) {
	u, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Host = strings.Replace(u.Host, "appsync-api", "appsync-realtime-api", 1)
	return u.String(), nil
}

// RealtimeClient opens push subscriptions for all four bookmark channels.
type RealtimeClient struct {
	URL    *url.URL
	Auth   AuthHeader
	Dialer *websocket.Dialer
	Logger *zap.Logger
}

// NewRealtimeClient creates a client for the realtime endpoint. The host in
// the authorization header is taken from the GraphQL endpoint. An empty
// realtimeURL is derived from the endpoint.
func NewRealtimeClient(endpoint, realtimeURL, apiKey string, logger *zap.Logger) (*RealtimeClient, error) {
	ep, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}
	if realtimeURL == "" {
		realtimeURL, err = RealtimeURLFromEndpoint(endpoint)
		if err != nil {
			return nil, err
		}
	}
	rt, err := url.ParseRequestURI(realtimeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse realtime url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RealtimeClient{
		URL:  rt,
		Auth: AuthHeader{Host: ep.Host, APIKey: apiKey},
		Dialer: &websocket.Dialer{
			Subprotocols:     []string{Subprotocol},
			HandshakeTimeout: handshakeTimeout,
		},
		Logger: logger,
	}, nil
}

// EncodeAuthHeader returns the base64 header query parameter.
func EncodeAuthHeader(auth AuthHeader) (string, error) {
	b, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (c *RealtimeClient) dialURL() (string, error) {
	header, err := EncodeAuthHeader(c.Auth)
	if err != nil {
		return "", err
	}
	u := *c.URL
	q := u.Query()
	q.Set("header", header)
	q.Set("payload", emptyPayload)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe connects, completes the handshake and starts every subscription.
// It returns once the server acknowledged all of them, so no change made
// after it returns is missed. The returned stream lives until Close or a
// connection failure; ctx only bounds the connection setup.
func (c *RealtimeClient) Subscribe(ctx context.Context) (EventStream, error) {
	feed, err := c.open(ctx)
	if err != nil {
		return nil, wrap("subscribe", err)
	}
	return feed, nil
}

func (c *RealtimeClient) open(ctx context.Context) (*Feed, error) {
	target, err := c.dialURL()
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth header: %w", err)
	}

	conn, _, err := c.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	f := &Feed{
		conn:      conn,
		logger:    c.Logger,
		events:    make(chan Event),
		done:      make(chan struct{}),
		keepAlive: DefaultConnectionTimeout,
	}

	if err := f.handshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	for _, kind := range EventKinds {
		if err := f.start(kind, c.Auth); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if err := f.awaitStartAcks(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go f.readLoop()
	return f, nil
}

// Feed is a live realtime connection with all four subscriptions acknowledged.
type Feed struct {
	conn      *websocket.Conn
	logger    *zap.Logger
	events    chan Event
	done      chan struct{}
	keepAlive time.Duration
	// notifications that arrived while waiting for start_ack
	backlog []Event

	writeMu sync.Mutex
	ids     []string

	mu     sync.Mutex
	err    error
	closed bool
	once   sync.Once
}

// Events returns the notification channel. It is closed when the feed ends.
func (f *Feed) Events() <-chan Event {
	return f.events
}

// Err reports why the feed ended. It is nil while the feed runs and after Close.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close stops every subscription and closes the connection.
func (f *Feed) Close() error {
	var err error
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)

		for _, id := range f.ids {
			if werr := f.write(Message{ID: id, Type: MsgStop}); werr != nil {
				f.logger.Debug("failed to send stop", zap.String("id", id), zap.Error(werr))
			}
		}
		f.writeMu.Lock()
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		f.writeMu.Unlock()
		err = f.conn.Close()
	})
	return err
}

func (f *Feed) write(msg Message) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if err := f.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return f.conn.WriteJSON(msg)
}

func (f *Feed) handshake(ctx context.Context) error {
	if err := f.write(Message{Type: MsgConnectionInit}); err != nil {
		return fmt.Errorf("failed to send connection_init: %w", err)
	}

	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := f.conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	for {
		var msg Message
		if err := f.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read connection_ack: %w", err)
		}
		switch msg.Type {
		case MsgConnectionAck:
			var ack AckPayload
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &ack); err != nil {
					return fmt.Errorf("failed to decode connection_ack: %w", err)
				}
			}
			if ack.ConnectionTimeoutMs > 0 {
				f.keepAlive = time.Duration(ack.ConnectionTimeoutMs) * time.Millisecond
			}
			return nil
		case MsgConnectionError, MsgError:
			return payloadError(msg)
		case MsgKeepAlive:
		default:
			f.logger.Debug("unexpected message before ack", zap.String("type", msg.Type))
		}
	}
}

func (f *Feed) start(kind EventKind, auth AuthHeader) error {
	data, err := json.Marshal(SubscriptionRequest{
		Query:     kind.Document(),
		Variables: map[string]any{},
	})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(StartPayload{
		Data:       string(data),
		Extensions: StartExtensions{Authorization: auth},
	})
	if err != nil {
		return err
	}

	id := kind.Field()
	if err := f.write(Message{ID: id, Type: MsgStart, Payload: payload}); err != nil {
		return fmt.Errorf("failed to start %s: %w", id, err)
	}
	f.ids = append(f.ids, id)
	return nil
}

// awaitStartAcks reads until every started id is acknowledged. Data for an
// already acknowledged id is kept for readLoop.
func (f *Feed) awaitStartAcks(ctx context.Context) error {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := f.conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	pending := make(map[string]bool, len(f.ids))
	for _, id := range f.ids {
		pending[id] = true
	}
	for len(pending) > 0 {
		var msg Message
		if err := f.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read start_ack: %w", err)
		}
		switch msg.Type {
		case MsgStartAck:
			delete(pending, msg.ID)
		case MsgData:
			ev, ok, err := f.decode(msg)
			if err != nil {
				f.logger.Warn("dropping undecodable notification", zap.String("id", msg.ID), zap.Error(err))
				continue
			}
			if ok {
				f.backlog = append(f.backlog, ev)
			}
		case MsgError, MsgConnectionError:
			if msg.ID != "" {
				return fmt.Errorf("subscription %s rejected: %w", msg.ID, payloadError(msg))
			}
			return payloadError(msg)
		case MsgKeepAlive:
		default:
			f.logger.Debug("unexpected message before start_ack", zap.String("type", msg.Type))
		}
	}
	return nil
}

func (f *Feed) readLoop() {
	defer close(f.events)

	for _, ev := range f.backlog {
		select {
		case f.events <- ev:
		case <-f.done:
			return
		}
	}
	f.backlog = nil

	for {
		if err := f.conn.SetReadDeadline(time.Now().Add(f.keepAlive)); err != nil {
			f.fail(err)
			return
		}

		var msg Message
		if err := f.conn.ReadJSON(&msg); err != nil {
			f.fail(err)
			return
		}

		switch msg.Type {
		case MsgKeepAlive, MsgStartAck, MsgComplete:
		case MsgData:
			ev, ok, err := f.decode(msg)
			if err != nil {
				f.logger.Warn("dropping undecodable notification", zap.String("id", msg.ID), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			select {
			case f.events <- ev:
			case <-f.done:
				return
			}
		case MsgError, MsgConnectionError:
			f.fail(payloadError(msg))
			_ = f.conn.Close()
			return
		default:
			f.logger.Debug("ignoring realtime message", zap.String("type", msg.Type))
		}
	}
}

func (f *Feed) decode(msg Message) (Event, bool, error) {
	kind, ok := KindForField(msg.ID)
	if !ok {
		return Event{}, false, fmt.Errorf("unknown subscription id %q", msg.ID)
	}
	var payload DataPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return Event{}, false, err
	}
	return DecodeEvent(kind, payload.Data[kind.Field()])
}

func (f *Feed) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.err = wrap("subscribe", err)
}

func payloadError(msg Message) error {
	var p ErrorPayload
	if len(msg.Payload) > 0 && json.Unmarshal(msg.Payload, &p) == nil && len(p.Errors) > 0 {
		return fmt.Errorf("%s: %w", msg.Type, p.Errors)
	}
	return errors.New(msg.Type)
}
