package entity

import "time"

// EventType identifies what happened to a transaction
type EventType string

const (
	EventCreated   EventType = "transaction.created"
	EventUpdated   EventType = "transaction.updated"
	EventDeleted   EventType = "transaction.deleted"
	EventConfirmed EventType = "transaction.confirmed"
	EventFailed    EventType = "transaction.failed"
)

// TransactionEvent is emitted after a change has been persisted
type TransactionEvent struct {
	Type          EventType    `json:"type"`
	TransactionID string       `json:"transactionId"`
	Transaction   *Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}
