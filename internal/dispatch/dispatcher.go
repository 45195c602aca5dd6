// Package dispatch implements the AlertDispatcher of spec.md: a bounded
// in-memory ring of recently published alerts plus fan-out to subscribers
// with drop-oldest backpressure, grounded on the teacher's
// stream_publisher.go per-subscriber notify-channel shape.
package dispatch

import (
	"sync"

	"sentinel-worker-go/internal/models"
)

const defaultReplayCount = 20

// Dispatcher publishes Alerts into a bounded ring and fans them out to
// subscribers. A stalled subscriber never blocks publish: each subscriber
// has its own bounded channel and the oldest unread alert is dropped on
// overflow.
type Dispatcher struct {
	mu       sync.Mutex
	ring     []models.Alert
	capacity int

	subs      map[int]chan models.Alert
	dropCounts map[int]uint64
	nextSubID int

	acked map[string]bool

	onDrop func(subID int, total uint64)
}

// New constructs a Dispatcher with the given ring capacity (spec.md default
// 200).
func New(capacity int) *Dispatcher {
	if capacity < 1 {
		capacity = 200
	}
	return &Dispatcher{
		capacity:   capacity,
		subs:       make(map[int]chan models.Alert),
		dropCounts: make(map[int]uint64),
		acked:      make(map[string]bool),
	}
}

// OnDrop registers a callback invoked (outside the Dispatcher's lock) every
// time an alert is dropped from a subscriber's queue, with that subscriber's
// running total. Used to surface "dispatcher drop counters" on the system
// push channel (spec.md §6).
func (d *Dispatcher) OnDrop(fn func(subID int, total uint64)) {
	d.mu.Lock()
	d.onDrop = fn
	d.mu.Unlock()
}

// DropCounts returns a snapshot of every subscriber's cumulative dropped-alert
// count, for diagnostics (spec.md §4.9: "Each dropped alert increments a
// per-subscriber counter surfaced in diagnostics").
func (d *Dispatcher) DropCounts() map[int]uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[int]uint64, len(d.dropCounts))
	for id, n := range d.dropCounts {
		out[id] = n
	}
	return out
}

// Publish appends alert to the ring (evicting the oldest entry on overflow)
// and offers it to every subscriber's queue, dropping that subscriber's
// oldest unread alert if its queue is full.
func (d *Dispatcher) Publish(alert models.Alert) {
	d.mu.Lock()

	d.ring = append(d.ring, alert)
	if len(d.ring) > d.capacity {
		d.ring = d.ring[len(d.ring)-d.capacity:]
	}

	type dropped struct {
		subID int
		total uint64
	}
	var drops []dropped

	for id, ch := range d.subs {
		select {
		case ch <- alert:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- alert:
			default:
			}
			d.dropCounts[id]++
			drops = append(drops, dropped{subID: id, total: d.dropCounts[id]})
		}
	}

	onDrop := d.onDrop
	d.mu.Unlock()

	if onDrop != nil {
		for _, dr := range drops {
			onDrop(dr.subID, dr.total)
		}
	}
}

// Subscribe registers a new subscriber and returns its channel (buffered to
// queueSize) pre-loaded with a replay of the last min(defaultReplayCount,
// ring length) alerts, plus an unsubscribe function. If queueSize is smaller
// than that replay window, only the oldest queueSize alerts of it are queued.
func (d *Dispatcher) Subscribe(queueSize int) (<-chan models.Alert, func()) {
	if queueSize < 1 {
		queueSize = defaultReplayCount
	}

	d.mu.Lock()
	id := d.nextSubID
	d.nextSubID++
	ch := make(chan models.Alert, queueSize)

	start := 0
	if len(d.ring) > defaultReplayCount {
		start = len(d.ring) - defaultReplayCount
	}
	for _, a := range d.ring[start:] {
		select {
		case ch <- a:
		default:
		}
	}

	d.subs[id] = ch
	d.dropCounts[id] = 0
	d.mu.Unlock()

	unsubscribe := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if c, ok := d.subs[id]; ok {
			close(c)
			delete(d.subs, id)
			delete(d.dropCounts, id)
		}
	}

	return ch, unsubscribe
}

// Acknowledge marks alertID acknowledged. Idempotent: a second call for the
// same id is a no-op and both return ok=true. Returns false for an id that is
// not in the ring and was not acknowledged while it was (including an alert
// evicted from the ring before anyone acknowledged it).
func (d *Dispatcher) Acknowledge(alertID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := false
	for i := range d.ring {
		if d.ring[i].ID == alertID {
			d.ring[i].Acknowledged = true
			found = true
			break
		}
	}
	if found {
		d.acked[alertID] = true
	}
	return found || d.acked[alertID]
}

// Recent returns a snapshot of every alert currently held in the ring,
// oldest first, for the query API.
func (d *Dispatcher) Recent() []models.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Alert, len(d.ring))
	copy(out, d.ring)
	return out
}
