package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/school-fee-ledger/internal/domain/ledger"
)

// Status defines message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// EventType names a ledger mutation published to downstream consumers
type EventType string

const (
	EventEntryCreated      EventType = "ledger.entry.created"
	EventEntryUpdated      EventType = "ledger.entry.updated"
	EventEntryDiscounted   EventType = "ledger.entry.discounted"
	EventEntryDeleted      EventType = "ledger.entry.deleted"
	EventChallansGenerated EventType = "ledger.challans.generated"
)

// Event is the payload carried by an outbox message and published to Kafka.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	Scope      string          `json:"scope"`
	Kind       ledger.Kind     `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Entries    []*ledger.Entry `json:"entries,omitempty"`
	DeletedID  *uuid.UUID      `json:"deleted_id,omitempty"`
}

// Message stores a ledger event for reliable publishing
type Message struct {
	ID            int64           `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"` // entry id, or the generation run id for batches
	Scope         string          `json:"scope"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// NewEntryMessage records a mutation of a single entry.
func NewEntryMessage(eventType EventType, entry *ledger.Entry) (*Message, error) {
	event := Event{
		ID:         uuid.New(),
		Type:       eventType,
		Scope:      entry.Scope,
		Kind:       entry.Kind,
		OccurredAt: time.Now(),
	}
	if eventType == EventEntryDeleted {
		id := entry.ID
		event.DeletedID = &id
	} else {
		event.Entries = []*ledger.Entry{entry}
	}
	return newMessage(event, entry.ID)
}

// NewBatchMessage records entries created together, e.g. one class of a
// challan generation run.
func NewBatchMessage(eventType EventType, scope string, batchID uuid.UUID, entries []*ledger.Entry) (*Message, error) {
	event := Event{
		ID:         uuid.New(),
		Type:       eventType,
		Scope:      scope,
		Kind:       ledger.KindFee,
		OccurredAt: time.Now(),
		Entries:    entries,
	}
	if len(entries) > 0 {
		event.Kind = entries[0].Kind
	}
	return newMessage(event, batchID)
}

func newMessage(event Event, aggregateID uuid.UUID) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:     event.ID,
		AggregateID: aggregateID,
		Scope:       event.Scope,
		EventType:   event.Type,
		Payload:     payload,
		Status:      StatusPending,
		Attempts:    0,
		CreatedAt:   event.OccurredAt,
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetEvent decodes the event carried in the payload
func (m *Message) GetEvent() (*Event, error) {
	var event Event
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
