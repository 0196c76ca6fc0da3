package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a donation transaction
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// CryptoPaymentMethod is the payment method that triggers blockchain confirmation
const CryptoPaymentMethod = "CRYPTO"

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no automatic transition may leave s
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Transaction represents a single donation made to a charity
type Transaction struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	CharityID       string          `json:"charityId"`
	DonorName       string          `json:"donorName"`
	PaymentMethod   string          `json:"paymentMethod"`
	Status          Status          `json:"status"`
	Message         string          `json:"message,omitempty"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       *time.Time      `json:"updatedAt,omitempty"`
}

// Validate ensures the transaction carries every required field
func (t *Transaction) Validate() error {
	if t == nil {
		return &ValidationError{Field: "transaction", Message: "Transaction cannot be null"}
	}

	if !t.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "Transaction amount must be greater than zero"}
	}

	if strings.TrimSpace(t.CharityID) == "" {
		return &ValidationError{Field: "charityId", Message: "Charity ID is required"}
	}

	if strings.TrimSpace(t.DonorName) == "" {
		return &ValidationError{Field: "donorName", Message: "Donor name is required"}
	}

	if strings.TrimSpace(t.PaymentMethod) == "" {
		return &ValidationError{Field: "paymentMethod", Message: "Payment method is required"}
	}

	if t.Status != "" && !t.Status.IsValid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("Unknown transaction status %q", t.Status)}
	}

	return nil
}

// IsCrypto reports whether the transaction needs blockchain confirmation
func (t *Transaction) IsCrypto() bool {
	return strings.EqualFold(strings.TrimSpace(t.PaymentMethod), CryptoPaymentMethod)
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}

	c := *t
	if t.UpdatedAt != nil {
		updated := *t.UpdatedAt
		c.UpdatedAt = &updated
	}
	return &c
}

// Touch sets UpdatedAt to the given instant
func (t *Transaction) Touch(now time.Time) {
	t.UpdatedAt = &now
}

// TransactionPatch carries the fields of a partial update. Nil or blank fields are left alone.
type TransactionPatch struct {
	Amount          *decimal.Decimal
	Status          *Status
	Message         *string
	TransactionHash *string
}

// Validate checks the fields the patch would write
func (p TransactionPatch) Validate() error {
	if p.Amount != nil && !p.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "Transaction amount must be greater than zero"}
	}

	if p.Status != nil && *p.Status != "" && !p.Status.IsValid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("Unknown transaction status %q", *p.Status)}
	}

	return nil
}

// ApplyTo merges the provided fields into t and reports whether anything was written
func (p TransactionPatch) ApplyTo(t *Transaction) bool {
	changed := false

	if p.Amount != nil {
		t.Amount = *p.Amount
		changed = true
	}
	if p.Status != nil && *p.Status != "" {
		t.Status = *p.Status
		changed = true
	}
	if p.Message != nil && strings.TrimSpace(*p.Message) != "" {
		t.Message = *p.Message
		changed = true
	}
	if p.TransactionHash != nil && strings.TrimSpace(*p.TransactionHash) != "" {
		t.TransactionHash = *p.TransactionHash
		changed = true
	}

	return changed
}

// NewTransactionID generates an id of the form TXN-<epoch-millis>-<8 hex chars>.
// Uniqueness is best effort; the store is never consulted for collisions.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN-%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

// NewTransactionHash generates a simulated on-chain hash: 0x followed by 32 hex chars
func NewTransactionHash() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate transaction hash: %w", err)
	}
	return "0x" + strings.ReplaceAll(id.String(), "-", ""), nil
}
