package events

import (
	"sync"
	"time"
)

// Event types published by the borrow lifecycle.
const (
	TypeSubmitted = "submitted"
	TypeApproved  = "approved"
	TypeDenied    = "denied"
)

// Event describes one borrow-lifecycle transition. The store remains the
// source of truth; events are a best-effort live feed.
type Event struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	At        time.Time `json:"at"`
}

// Broadcaster fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber with room in its buffer
func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
