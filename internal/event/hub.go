// Package event provides the in-memory hub that decouples lead persistence
// from the side effects that follow it (CRM sync, sales alerts).
package event

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the default per-subscriber channel buffer.
const DefaultBufferSize = 64

// Type identifies the event category.
type Type string

const (
	// TypeLeadUpserted is emitted after a lead is persisted successfully.
	// CRM injection listens here so a CRM outage can never fail a capture.
	TypeLeadUpserted Type = "lead_upserted"
	// TypeLeadHot is emitted the first time a lead reaches the hot rating.
	TypeLeadHot Type = "lead_hot"
)

// Event is the payload published after a lead state change is committed.
type Event struct {
	Type  Type            `json:"type"`
	Phone string          `json:"phone"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(event Event)
}

// Hub is an in-process pub/sub dispatcher keyed by event type.
type Hub struct {
	mu      sync.RWMutex
	streams map[Type]map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		streams: map[Type]map[string]chan Event{},
	}
}

// Publish broadcasts one event to all subscribers of its type.
// Slow subscribers are dropped in a non-blocking way.
func (h *Hub) Publish(event Event) {
	if h == nil || event.Type == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.streams[event.Type] {
		select {
		case ch <- event:
		default:
			// Drop if receiver is slow to avoid blocking the persistence path.
		}
	}
}

// Subscribe registers one subscriber for an event type.
// It returns a stream ID, read-only event channel, and a cancel function.
func (h *Hub) Subscribe(t Type, buffer int) (string, <-chan Event, func()) {
	if h == nil || t == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[t]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[t] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			streams := h.streams[t]
			if streams != nil {
				if current, ok := streams[streamID]; ok {
					delete(streams, streamID)
					close(current)
				}
				if len(streams) == 0 {
					delete(h.streams, t)
				}
			}
			h.mu.Unlock()
		})
	}

	return streamID, ch, cancel
}
