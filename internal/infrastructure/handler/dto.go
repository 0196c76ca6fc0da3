package handler

import (
	"strings"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest represents the request body for creating a transaction.
// Amount accepts a JSON number or a numeric string.
type CreateTransactionRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	CharityID     string           `json:"charityId"`
	DonorName     string           `json:"donorName"`
	PaymentMethod string           `json:"paymentMethod"`
	Status        string           `json:"status,omitempty"`
	Message       string           `json:"message,omitempty"`
}

// ToEntity builds the candidate transaction handed to the service
func (r CreateTransactionRequest) ToEntity() *entity.Transaction {
	tx := &entity.Transaction{
		CharityID:     strings.TrimSpace(r.CharityID),
		DonorName:     strings.TrimSpace(r.DonorName),
		PaymentMethod: strings.TrimSpace(r.PaymentMethod),
		Status:        entity.Status(strings.ToUpper(strings.TrimSpace(r.Status))),
		Message:       r.Message,
	}
	if r.Amount != nil {
		tx.Amount = *r.Amount
	}
	return tx
}

// UpdateTransactionRequest represents the request body for updating a transaction.
// Absent fields are left untouched; other transaction fields in the body are ignored.
type UpdateTransactionRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	Status          *string          `json:"status"`
	Message         *string          `json:"message"`
	TransactionHash *string          `json:"transactionHash"`
}

// ToPatch converts the request into a domain patch
func (r UpdateTransactionRequest) ToPatch() entity.TransactionPatch {
	patch := entity.TransactionPatch{
		Amount:          r.Amount,
		Message:         r.Message,
		TransactionHash: r.TransactionHash,
	}
	if r.Status != nil {
		status := entity.Status(strings.ToUpper(strings.TrimSpace(*r.Status)))
		patch.Status = &status
	}
	return patch
}
