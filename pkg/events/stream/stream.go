package stream

import (
	"context"
	"log"
	"sync"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/events"
)

// Hub fans acknowledgements out to live subscribers, for the ack
// watch endpoint.
//
// Publishing never blocks on a subscriber: one that stops reading has
// its acks dropped, not queued without bound. The durable delivery
// path is the webhook publisher; the hub is a live view only.
type Hub struct {
	mux         sync.Mutex
	subscribers map[int64]chan domain.RequestAck
	nextId      int64

	Logger *log.Logger
}

var _ events.Publisher = &Hub{}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		subscribers: map[int64]chan domain.RequestAck{},
		Logger:      logger,
	}
}

// subscriberBuffer is how many acks a slow subscriber may lag before
// losing some.
const subscriberBuffer = 64

// Subscribe registers a subscriber. The returned cancel func must be
// called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan domain.RequestAck, func()) {
	h.mux.Lock()
	defer h.mux.Unlock()

	id := h.nextId
	h.nextId++

	ch := make(chan domain.RequestAck, subscriberBuffer)
	h.subscribers[id] = ch

	return ch, func() {
		h.mux.Lock()
		defer h.mux.Unlock()
		delete(h.subscribers, id)
	}
}

func (h *Hub) Publish(_ context.Context, ack domain.RequestAck) error {
	h.mux.Lock()
	defer h.mux.Unlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- ack:
		default:
			h.Logger.Printf("ack watch subscriber %d is lagging, ack dropped", id)
		}
	}
	return nil
}
