package devserver

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/api"
)

// sendBufferSize bounds the queued frames per connection.
const sendBufferSize = 64

// Hub tracks realtime connections and fans notifications out to every
// subscription of the matching field, including the connection whose
// mutation caused it.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	logger      *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
	}
}

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	h.logger.Info("realtime client connected", zap.String("connectionID", s.id), zap.Int("connections", n))
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	n := len(h.subscribers)
	h.mu.Unlock()
	h.logger.Info("realtime client disconnected", zap.String("connectionID", s.id), zap.Int("connections", n))
}

// Subscriptions counts the active subscriptions to field.
func (h *Hub) Subscriptions(field string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for s := range h.subscribers {
		n += len(s.idsFor(field))
	}
	return n
}

// Publish sends value as a data frame to every subscription of field.
// Frames for connections that cannot keep up are dropped.
func (h *Hub) Publish(field string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		h.logger.Error("failed to marshal notification", zap.String("field", field), zap.Error(err))
		return
	}
	payload, err := json.Marshal(api.DataPayload{Data: map[string]json.RawMessage{field: raw}})
	if err != nil {
		h.logger.Error("failed to marshal notification", zap.String("field", field), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for s := range h.subscribers {
		for _, id := range s.idsFor(field) {
			if s.enqueue(api.Message{ID: id, Type: api.MsgData, Payload: payload}) {
				sent++
			} else {
				h.logger.Warn("dropping notification for slow client",
					zap.String("connectionID", s.id),
					zap.String("field", field),
				)
			}
		}
	}
	h.logger.Debug("published notification", zap.String("field", field), zap.Int("recipients", sent))
}

// subscriber is one realtime connection. Only its write pump writes to the
// socket; everything else queues frames on send.
type subscriber struct {
	id   string
	send chan api.Message
	done chan struct{}

	mu     sync.Mutex
	fields map[string]string // subscription id -> field
}

func newSubscriber(id string) *subscriber {
	return &subscriber{
		id:     id,
		send:   make(chan api.Message, sendBufferSize),
		done:   make(chan struct{}),
		fields: make(map[string]string),
	}
}

func (s *subscriber) enqueue(msg api.Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber) subscribe(id, field string) {
	s.mu.Lock()
	s.fields[id] = field
	s.mu.Unlock()
}

func (s *subscriber) unsubscribe(id string) {
	s.mu.Lock()
	delete(s.fields, id)
	s.mu.Unlock()
}

func (s *subscriber) idsFor(field string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, f := range s.fields {
		if f == field {
			ids = append(ids, id)
		}
	}
	return ids
}
