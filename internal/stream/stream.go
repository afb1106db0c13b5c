// Package stream fans presence transitions out to dashboard subscribers
// (SSE clients).
package stream

import (
	"context"
	"sync"
	"time"
)

// VisitEvent describes one check-in or check-out for live display.
type VisitEvent struct {
	ActorID   string    `json:"actor_id"`
	SiteID    int64     `json:"site_id"`
	SiteName  string    `json:"site_name"`
	Action    string    `json:"action"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs visit events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan VisitEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan VisitEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan VisitEvent {
	ch := make(chan VisitEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt VisitEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
