package amqp

import (
	"encoding/json"
	"time"
)

const (
	EventCreated EventKind = "created"
	EventDeleted EventKind = "deleted"
)

// EventKind tags what happened to a transaction.
type EventKind string

// TransactionEvent is a lightweight mutation notice. It carries only the
// transaction ID; consumers fetch current state through the gateway, so a
// lost or reordered event costs nothing but freshness.
type TransactionEvent struct {
	Event     EventKind `json:"event"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCreatedEvent builds the event published after a successful add.
func NewCreatedEvent(id int64) *TransactionEvent {
	return &TransactionEvent{Event: EventCreated, ID: id, Timestamp: time.Now()}
}

// NewDeletedEvent builds the event published after a successful remove.
func NewDeletedEvent(id int64) *TransactionEvent {
	return &TransactionEvent{Event: EventDeleted, ID: id, Timestamp: time.Now()}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON creates an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
