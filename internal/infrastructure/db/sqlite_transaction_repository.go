package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
	id               TEXT PRIMARY KEY,
	amount           TEXT NOT NULL,
	charity_id       TEXT NOT NULL,
	donor_name       TEXT NOT NULL,
	payment_method   TEXT NOT NULL,
	status           TEXT NOT NULL,
	message          TEXT NOT NULL DEFAULT '',
	transaction_hash TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	updated_at       TEXT
);`

const upsertTransaction = `
INSERT INTO transactions (id, amount, charity_id, donor_name, payment_method, status, message, transaction_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	amount = excluded.amount,
	charity_id = excluded.charity_id,
	donor_name = excluded.donor_name,
	payment_method = excluded.payment_method,
	status = excluded.status,
	message = excluded.message,
	transaction_hash = excluded.transaction_hash,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at;`

const selectTransactionColumns = `SELECT id, amount, charity_id, donor_name, payment_method, status, message, transaction_hash, created_at, updated_at FROM transactions`

// SQLiteTransactionRepository implements the transaction store on a SQLite file.
// Amounts are kept as decimal strings and times as RFC 3339 text so nothing is lost.
type SQLiteTransactionRepository struct {
	db *sql.DB
}

// NewSQLiteTransactionRepository opens the database at path and creates the table if needed
func NewSQLiteTransactionRepository(ctx context.Context, path string) (*SQLiteTransactionRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTransactionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create transactions table: %w", err)
	}

	return &SQLiteTransactionRepository{db: db}, nil
}

// Get retrieves a transaction by id
func (r *SQLiteTransactionRepository) Get(ctx context.Context, id string) (*entity.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactionColumns+" WHERE id = ?", id)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("failed to retrieve transaction", err)
	}

	return tx, nil
}

// Put inserts or replaces the transaction
func (r *SQLiteTransactionRepository) Put(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, error) {
	var updatedAt sql.NullString
	if tx.UpdatedAt != nil {
		updatedAt = sql.NullString{String: tx.UpdatedAt.Format(time.RFC3339Nano), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, upsertTransaction,
		tx.ID,
		tx.Amount.String(),
		tx.CharityID,
		tx.DonorName,
		tx.PaymentMethod,
		string(tx.Status),
		tx.Message,
		tx.TransactionHash,
		tx.CreatedAt.Format(time.RFC3339Nano),
		updatedAt,
	)
	if err != nil {
		return nil, storeError("failed to store transaction", err)
	}

	return tx.Clone(), nil
}

// Delete removes the transaction and reports whether it existed
func (r *SQLiteTransactionRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return false, storeError("failed to delete transaction", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, storeError("failed to delete transaction", err)
	}

	return n > 0, nil
}

// ListAll returns every stored transaction in insertion order
func (r *SQLiteTransactionRepository) ListAll(ctx context.Context) ([]*entity.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactionColumns+" ORDER BY rowid")
	if err != nil {
		return nil, storeError("failed to list transactions", err)
	}
	defer rows.Close()

	txs := make([]*entity.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storeError("failed to scan transaction", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to list transactions", err)
	}

	return txs, nil
}

// Close releases the connection pool
func (r *SQLiteTransactionRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*entity.Transaction, error) {
	var (
		tx        entity.Transaction
		amount    string
		status    string
		createdAt string
		updatedAt sql.NullString
	)

	err := row.Scan(&tx.ID, &amount, &tx.CharityID, &tx.DonorName, &tx.PaymentMethod, &status,
		&tx.Message, &tx.TransactionHash, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	tx.Status = entity.Status(status)

	tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}

	if updatedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt.String, err)
		}
		tx.UpdatedAt = &t
	}

	return &tx, nil
}
