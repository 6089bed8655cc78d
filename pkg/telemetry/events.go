package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a change notification raised by the record store.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies the backend the store is bound to.
	Source string `json:"source,omitempty"`

	// RecordID is the affected record id, if applicable.
	RecordID string `json:"record_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`
}

// Event types published by the record store.
const (
	EventTypeRecordAdded   = "record.added"
	EventTypeRecordUpdated = "record.updated"
	EventTypeRecordDeleted = "record.deleted"
	EventTypeStoreLoaded   = "store.loaded"
	EventTypeStoreSaved    = "store.saved"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers synchronously, on the
// publishing goroutine, in subscription order.
type EventPublisher struct {
	config      EventsConfig
	subscribers []subscriberEntry
	mu          sync.RWMutex
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) *EventPublisher {
	return &EventPublisher{config: cfg}
}

// Publish delivers an event to every matching subscriber.
func (ep *EventPublisher) Publish(event Event) {
	if ep == nil || !ep.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	subs := make([]subscriberEntry, len(ep.subscribers))
	copy(subs, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range subs {
		if entry.filter == nil || entry.filter(event) {
			entry.subscriber(event)
		}
	}
}

// Subscribe adds a subscriber with an optional filter.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// FilterByType returns a filter that passes events of the given types.
func FilterByType(types ...string) EventFilter {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(event Event) bool {
		return set[event.Type]
	}
}

// FilterByRecordID returns a filter that passes events about one record.
func FilterByRecordID(id string) EventFilter {
	return func(event Event) bool {
		return event.RecordID == id
	}
}
