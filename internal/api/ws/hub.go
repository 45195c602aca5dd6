// Package ws implements the four push channels of spec.md §6 (live-feed,
// alerts, analysis, system) over WebSocket connections, grounded on the
// teacher's per-client send channel + writer goroutine pattern generalized
// from websocket.Conn writes in the detector service found elsewhere in the
// pack, and on stream_publisher.go's per-subscriber notification shape.
package ws

import "sync"

// Hub broadcasts arbitrary JSON-able messages to subscribers, with
// per-subscriber bounded queues and drop-oldest backpressure: a stalled
// subscriber must never stall the publisher (spec.md §9).
type Hub struct {
	mu        sync.Mutex
	subs      map[int]chan any
	nextSubID int
	queueSize int
}

// NewHub constructs a Hub whose subscriber queues hold queueSize messages.
func NewHub(queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = 32
	}
	return &Hub{subs: make(map[int]chan any), queueSize: queueSize}
}

// Publish offers msg to every subscriber, dropping the oldest unread message
// for any subscriber whose queue is full.
func (h *Hub) Publish(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (h *Hub) Subscribe() (<-chan any, func()) {
	h.mu.Lock()
	id := h.nextSubID
	h.nextSubID++
	ch := make(chan any, h.queueSize)
	h.subs[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			close(c)
			delete(h.subs, id)
		}
	}
}
