package events

import (
	"encoding/json"
	"sync"
	"time"

	"salon/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventClientRegistered      = "client_registered"
	EventVisitRegistered       = "visit_registered"
	EventHairServiceRegistered = "hair_service_registered"
	EventRewardUnlocked        = "reward_unlocked"
	EventRewardRedeemed        = "reward_redeemed"
	EventBookingCreated        = "booking_created"
	EventBookingDeleted        = "booking_deleted"
	EventSaleCompleted         = "sale_completed"
)

// ClientEventPayload is the loyalty snapshot after a registration, visit,
// hair service or redemption.
type ClientEventPayload struct {
	ClientID         int64     `json:"client_id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	Visits           int       `json:"visits"`
	HairServiceCount int       `json:"hair_service_count"`
	Tier             string    `json:"tier"`
	Reward           string    `json:"reward,omitempty"`
	ServiceName      string    `json:"service,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NewClientEventPayload snapshots c at t.
func NewClientEventPayload(c *models.Client, t time.Time) ClientEventPayload {
	return ClientEventPayload{
		ClientID:         c.ID,
		Name:             c.Name,
		Phone:            c.Phone,
		Visits:           c.Visits,
		HairServiceCount: c.HairServiceCount,
		Tier:             string(c.Account().Tier()),
		OccurredAt:       t,
	}
}

type BookingEventPayload struct {
	Booking   *models.Booking `json:"booking"`
	ChangedBy string          `json:"changed_by,omitempty"`
}

type SaleEventPayload struct {
	ClientID      *int64                `json:"client_id,omitempty"`
	PaymentMethod string                `json:"payment_method"`
	Total         int64                 `json:"total"`
	Staff         string                `json:"staff,omitempty"`
	Lines         []*models.Transaction `json:"lines"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events. Handlers run synchronously
// on the publisher's goroutine and must hand slow work off elsewhere.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler failures are logged to logger.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for one or more event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. A failing handler does not
// stop the others and never reaches the publisher.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
