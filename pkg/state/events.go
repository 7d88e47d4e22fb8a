package state

import (
	"slices"
	"sync"
)

// EventType identifies a notification published on an EventBus
type EventType string

const (
	EventNodeDisplayed        EventType = "node.displayed"
	EventPreferenceDiscovered EventType = "preference.discovered"
	EventLoveChanged          EventType = "love.changed"
	EventWarning              EventType = "dialogue.warning"
	EventSessionEnded         EventType = "session.ended"
)

// Event is a notification about a game state change or a dialogue transition.
// Data carries type-specific fields and is JSON-safe so it can be broadcast as-is.
type Event struct {
	Type      EventType              `json:"type"`
	GameID    string                 `json:"game_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Listener receives published events. Listeners run synchronously on the publishing goroutine.
type Listener func(Event)

// EventBus is a subscribable observer list
type EventBus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns a function that removes it
func (b *EventBus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = l

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Publish delivers the event to every listener in subscription order
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.RUnlock()

	// Listeners may call back into the bus or the game state, so run them unlocked
	for _, l := range listeners {
		l(e)
	}
}

// Len returns the number of subscribed listeners
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
