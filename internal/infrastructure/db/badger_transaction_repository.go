package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
)

const transactionKeyPrefix = "tx:"

// BadgerTransactionRepository implements the transaction store using BadgerDB.
// Each record is a JSON document under "tx:<id>".
type BadgerTransactionRepository struct {
	db *badger.DB
}

// NewBadgerTransactionRepository creates a new BadgerDB transaction repository
func NewBadgerTransactionRepository(db *badger.DB) *BadgerTransactionRepository {
	return &BadgerTransactionRepository{db: db}
}

// OpenBadger opens a BadgerDB at path, or an in-memory instance when inMemory is set
func OpenBadger(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return db, nil
}

func transactionKey(id string) []byte {
	return []byte(transactionKeyPrefix + id)
}

// Get retrieves a transaction by id
func (r *BadgerTransactionRepository) Get(ctx context.Context, id string) (*entity.Transaction, error) {
	var tx entity.Transaction

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(transactionKey(id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tx)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("failed to retrieve transaction", err)
	}

	return &tx, nil
}

// Put saves the transaction under its id, replacing any previous version
func (r *BadgerTransactionRepository) Put(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, storeError("failed to marshal transaction", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(transactionKey(tx.ID), data)
	})
	if err != nil {
		return nil, storeError("failed to store transaction", err)
	}

	return tx.Clone(), nil
}

// Delete removes the transaction and reports whether it existed
func (r *BadgerTransactionRepository) Delete(ctx context.Context, id string) (bool, error) {
	existed := false

	err := r.db.Update(func(txn *badger.Txn) error {
		key := transactionKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return false, storeError("failed to delete transaction", err)
	}

	return existed, nil
}

// ListAll returns every stored transaction in key order
func (r *BadgerTransactionRepository) ListAll(ctx context.Context) ([]*entity.Transaction, error) {
	txs := make([]*entity.Transaction, 0)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(transactionKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var tx entity.Transaction
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &tx)
			}); err != nil {
				return err
			}
			txs = append(txs, &tx)
		}
		return nil
	})
	if err != nil {
		return nil, storeError("failed to list transactions", err)
	}

	return txs, nil
}

// Close releases the database
func (r *BadgerTransactionRepository) Close() error {
	return r.db.Close()
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, entity.ErrStoreFailure, err)
}
