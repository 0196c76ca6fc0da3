package repository

import (
	"context"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
)

// TransactionStore defines the interface for transaction storage.
// Implementations guarantee atomicity per record only; ListAll is not a consistent snapshot.
type TransactionStore interface {
	// Get retrieves a transaction by id, returning nil and no error when it does not exist
	Get(ctx context.Context, id string) (*entity.Transaction, error)

	// Put inserts or replaces the transaction stored under its id
	Put(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, error)

	// Delete removes the transaction and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)

	// ListAll returns every stored transaction in no particular order
	ListAll(ctx context.Context) ([]*entity.Transaction, error)
}
