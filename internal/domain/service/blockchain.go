package service

import (
	"context"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
)

// BlockchainConfirmer settles a crypto transaction on chain and returns its hash
type BlockchainConfirmer interface {
	Confirm(ctx context.Context, tx *entity.Transaction) (string, error)
}

// EventPublisher is notified after a transaction change has been persisted.
// Implementations must not block the caller.
type EventPublisher interface {
	Publish(event entity.TransactionEvent)
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish implements EventPublisher
func (NopPublisher) Publish(entity.TransactionEvent) {}
