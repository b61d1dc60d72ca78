package devserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/api"
)

const (
	writeWait      = 10 * time.Second
	initWait       = 10 * time.Second
	maxMessageSize = 64 * 1024
)

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	auth, err := decodeAuthHeader(r.URL.Query().Get("header"))
	if err != nil {
		writeErrors(w, http.StatusBadRequest, gqlError(errorTypeValidation, "invalid header parameter: %v", err))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := newSubscriber(uuid.NewString())
	logger := s.logger.With(zap.String("connectionID", sub.id))

	if err := s.awaitInit(conn); err != nil {
		logger.Debug("realtime handshake failed", zap.Error(err))
		return
	}
	if auth.APIKey != s.apiKey {
		s.rejectConnection(conn, gqlError(errorTypeUnauthorized, "invalid API key"))
		return
	}

	ack, _ := json.Marshal(api.AckPayload{ConnectionTimeoutMs: int(s.connectionTimeout / time.Millisecond)})
	if err := writeFrame(conn, api.Message{Type: api.MsgConnectionAck, Payload: ack}); err != nil {
		return
	}

	s.hub.register(sub)
	defer s.hub.unregister(sub)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.writePump(conn, sub, logger)
	}()

	s.readPump(conn, sub, logger)
	close(sub.done)
	<-pumpDone
}

func decodeAuthHeader(param string) (api.AuthHeader, error) {
	var auth api.AuthHeader
	if param == "" {
		return auth, errors.New("missing")
	}
	raw, err := base64.StdEncoding.DecodeString(param)
	if err != nil {
		return auth, err
	}
	err = json.Unmarshal(raw, &auth)
	return auth, err
}

func writeFrame(conn *websocket.Conn, msg api.Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// awaitInit reads until connection_init arrives.
func (s *Server) awaitInit(conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(initWait)); err != nil {
		return err
	}
	for {
		var msg api.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type == api.MsgConnectionInit {
			return conn.SetReadDeadline(time.Time{})
		}
	}
}

func (s *Server) rejectConnection(conn *websocket.Conn, errs api.GraphQLErrors) {
	payload, _ := json.Marshal(api.ErrorPayload{Errors: errs})
	_ = writeFrame(conn, api.Message{Type: api.MsgConnectionError, Payload: payload})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
		time.Now().Add(writeWait))
}

// readPump handles start and stop until the client goes away.
func (s *Server) readPump(conn *websocket.Conn, sub *subscriber, logger *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	for {
		var msg api.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("realtime read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case api.MsgStart:
			s.handleStart(sub, msg, logger)
		case api.MsgStop:
			sub.unsubscribe(msg.ID)
			sub.enqueue(api.Message{ID: msg.ID, Type: api.MsgComplete})
		case api.MsgConnectionInit:
		default:
			logger.Debug("ignoring realtime message", zap.String("type", msg.Type))
		}
	}
}

func (s *Server) handleStart(sub *subscriber, msg api.Message, logger *zap.Logger) {
	fail := func(errs api.GraphQLErrors) {
		payload, _ := json.Marshal(api.ErrorPayload{Errors: errs})
		sub.enqueue(api.Message{ID: msg.ID, Type: api.MsgError, Payload: payload})
	}

	var start api.StartPayload
	if err := json.Unmarshal(msg.Payload, &start); err != nil {
		fail(gqlError(errorTypeValidation, "invalid start payload: %v", err))
		return
	}
	if start.Extensions.Authorization.APIKey != s.apiKey {
		fail(gqlError(errorTypeUnauthorized, "invalid API key"))
		return
	}

	var req api.SubscriptionRequest
	if err := json.Unmarshal([]byte(start.Data), &req); err != nil {
		fail(gqlError(errorTypeValidation, "invalid subscription request: %v", err))
		return
	}
	op, err := ParseOperation(req.Query, req.OperationName)
	if err != nil {
		fail(gqlError(errorTypeValidation, "%v", err))
		return
	}
	if op.Type != string(ast.Subscription) || len(op.Fields) != 1 {
		fail(gqlError(errorTypeValidation, "a subscription must select exactly one field"))
		return
	}
	field := op.Fields[0].Name
	if _, ok := api.KindForField(field); !ok {
		fail(gqlError(errorTypeValidation, "unsupported subscription field %q", field))
		return
	}

	sub.subscribe(msg.ID, field)
	sub.enqueue(api.Message{ID: msg.ID, Type: api.MsgStartAck})
	logger.Debug("subscription started", zap.String("id", msg.ID), zap.String("field", field))
}

// writePump owns all writes after the handshake and sends keep-alives.
func (s *Server) writePump(conn *websocket.Conn, sub *subscriber, logger *zap.Logger) {
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-sub.send:
			if err := writeFrame(conn, msg); err != nil {
				logger.Debug("realtime write failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := writeFrame(conn, api.Message{Type: api.MsgKeepAlive}); err != nil {
				logger.Debug("keep-alive failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}
}
