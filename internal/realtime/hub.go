// Package realtime fans progress refresh hints out to connected clients.
// Hints never carry progress state; receivers re-fetch.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// HintProgressUpdated is sent after a progress record changes.
const HintProgressUpdated = "progress_updated"

// subscriberBuffer is how many hints a subscriber may lag behind before
// further hints to it are dropped.
const subscriberBuffer = 16

// Hint tells clients that a student's progress changed.
type Hint struct {
	Type      string `json:"type"`
	StudentID int64  `json:"student_id"`
	TopicID   int    `json:"topic_id"`
}

// Subscriber receives hints on C until it is removed from the hub.
type Subscriber struct {
	ID        uuid.UUID
	StudentID int64 // 0 receives hints for every student
	C         <-chan Hint

	out chan Hint
}

func (s *Subscriber) wants(h Hint) bool {
	return s.StudentID == 0 || s.StudentID == h.StudentID
}

// Hub tracks local subscribers and delivers hints to them.
type Hub struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]*Subscriber
	dropped int
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]*Subscriber)}
}

// Subscribe registers a subscriber for studentID, or for all students when
// studentID is 0. A closed hub returns a subscriber whose channel is closed.
func (h *Hub) Subscribe(studentID int64) *Subscriber {
	out := make(chan Hint, subscriberBuffer)
	sub := &Subscriber{ID: uuid.New(), StudentID: studentID, C: out, out: out}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(out)
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.out)
}

// Broadcast delivers h to every interested subscriber without blocking.
// Subscribers whose buffer is full miss the hint.
func (h *Hub) Broadcast(hint Hint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if !sub.wants(hint) {
			continue
		}
		select {
		case sub.out <- hint:
		default:
			h.dropped++
			slog.Debug("dropping hint for slow subscriber",
				"subscriber_id", sub.ID,
				"student_id", hint.StudentID,
				"topic_id", hint.TopicID,
			)
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many hints were discarded for slow subscribers.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close removes every subscriber. Later subscriptions are closed at once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.out)
	}
	h.closed = true
}
