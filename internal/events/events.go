package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventRoomCreated          = "room_created"
	EventRoomUpdated          = "room_updated"
	EventRoomDeleted          = "room_deleted"
	EventTicketCreated        = "ticket_created"
	EventTicketUpdated        = "ticket_updated"
	EventTicketStatusChanged  = "ticket_status_changed"
	EventServiceCreated       = "service_created"
	EventServiceUpdated       = "service_updated"
	EventServiceDeleted       = "service_deleted"
	EventCheckoutCreated      = "checkout_created"
	EventCheckoutApproved     = "checkout_approved"
	EventCheckoutRejected     = "checkout_rejected"
	EventCheckoutCompleted    = "checkout_completed"
	EventUserCreated          = "user_created"
	EventUserUpdated          = "user_updated"
	EventUserDeleted          = "user_deleted"
	EventSessionStarted       = "session_started"
	EventSessionEnded         = "session_ended"
	EventCheckoutAutoComplete = "checkout_auto_completed"
)

// AllEvents lists every event type the console emits.
var AllEvents = []string{
	EventRoomCreated, EventRoomUpdated, EventRoomDeleted,
	EventTicketCreated, EventTicketUpdated, EventTicketStatusChanged,
	EventServiceCreated, EventServiceUpdated, EventServiceDeleted,
	EventCheckoutCreated, EventCheckoutApproved, EventCheckoutRejected, EventCheckoutCompleted,
	EventUserCreated, EventUserUpdated, EventUserDeleted,
	EventSessionStarted, EventSessionEnded, EventCheckoutAutoComplete,
}

// EntityPayload is the snapshot attached to every entity event.
type EntityPayload struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	Status    string    `json:"status,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name,omitempty"`
	At        time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run synchronously.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// AuditLog subscribes a structured audit logger to every event type. count,
// when non-nil, is called once per event.
func AuditLog(bus *EventBus, logger *zerolog.Logger, count func(eventType string)) {
	for _, eventType := range AllEvents {
		bus.Subscribe(eventType, func(event *Event) error {
			if count != nil {
				count(event.Type)
			}
			if logger == nil {
				return nil
			}
			logger.Info().
				Str("event", event.Type).
				RawJSON("payload", event.Payload).
				Time("at", event.CreatedAt).
				Msg("audit")
			return nil
		})
	}
}
