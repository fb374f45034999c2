package outbox

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types written by reconciliation. Notification events are relayed to
// the outbound notification stream instead of the domain event stream.
const (
	EventPaymentUpdated      = "payment.updated"
	EventCreditsUpdated      = "credits.updated"
	EventPaymentConfirmation = "notification.payment_confirmation"
)

const notificationPrefix = "notification."

type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	LastError     *string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    5,
		CreatedAt:     time.Now(),
	}
}

// IsNotification reports whether the entry is addressed to a user rather than to subscribers.
func (e *Entry) IsNotification() bool {
	return strings.HasPrefix(e.EventType, notificationPrefix)
}

// Exhausted reports whether the relay should stop retrying the entry.
func (e *Entry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}
