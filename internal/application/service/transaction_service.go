package service

import (
	"context"
	"strings"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/application/query"
	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/damon-houk/donation-transaction-service/internal/domain/repository"
	domainservice "github.com/damon-houk/donation-transaction-service/internal/domain/service"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
)

// Scheduler starts the detached confirmation of a crypto transaction
type Scheduler interface {
	Schedule(id string)
}

// ListOptions are the paging and sorting parameters of a list request
type ListOptions struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

// DefaultListOptions returns page 0 of 20, newest first
func DefaultListOptions() ListOptions {
	return ListOptions{
		Page:    query.DefaultPage,
		Size:    query.DefaultSize,
		SortBy:  query.DefaultSortBy,
		SortDir: query.DefaultSortDir,
	}
}

// TransactionService handles the lifecycle and queries of donation transactions.
//
// Not-found lookups return a nil transaction and a nil error. Store errors are returned
// unchanged.
type TransactionService struct {
	store     repository.TransactionStore
	scheduler Scheduler
	events    domainservice.EventPublisher
	logger    logger.Logger
	now       func() time.Time
}

// NewTransactionService creates a new transaction service. A nil scheduler disables
// crypto confirmation and a nil publisher drops events.
func NewTransactionService(store repository.TransactionStore, scheduler Scheduler, events domainservice.EventPublisher, log logger.Logger) *TransactionService {
	if events == nil {
		events = domainservice.NopPublisher{}
	}

	return &TransactionService{
		store:     store,
		scheduler: scheduler,
		events:    events,
		logger:    logger.OrDefault(log),
		now:       time.Now,
	}
}

// ListTransactions returns one sorted page of all transactions
func (s *TransactionService) ListTransactions(ctx context.Context, opts ListOptions) ([]*entity.Transaction, error) {
	requestID := middleware.GetRequestID(ctx)

	if err := validatePage(opts.Page, opts.Size); err != nil {
		return nil, err
	}

	s.logger.Debug("Fetching transactions", map[string]interface{}{
		"request_id": requestID,
		"page":       opts.Page,
		"size":       opts.Size,
		"sort_by":    opts.SortBy,
		"sort_dir":   opts.SortDir,
	})

	all, err := s.store.ListAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list transactions", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, err
	}

	page := query.List(all, opts.Page, opts.Size, opts.SortBy, opts.SortDir)

	s.logger.Info("Retrieved transactions", map[string]interface{}{
		"request_id": requestID,
		"count":      len(page),
		"total":      len(all),
	})

	return page, nil
}

// GetTransaction retrieves a transaction by id
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*entity.Transaction, error) {
	requestID := middleware.GetRequestID(ctx)

	if strings.TrimSpace(id) == "" {
		return nil, entity.NewValidationError("id", "Transaction ID cannot be null or empty")
	}

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Error("Failed to retrieve transaction", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return nil, err
	}

	if tx == nil {
		s.logger.Warn("Transaction not found", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
		})
		return nil, nil
	}

	return tx, nil
}

// CreateTransaction validates and stores a new transaction. Crypto transactions are
// returned PENDING while their confirmation runs in the background.
func (s *TransactionService) CreateTransaction(ctx context.Context, candidate *entity.Transaction) (*entity.Transaction, error) {
	requestID := middleware.GetRequestID(ctx)

	if err := candidate.Validate(); err != nil {
		s.logger.Warn("Invalid transaction data", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, err
	}

	tx := candidate.Clone()
	now := s.now()

	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = entity.NewTransactionID(now)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.Status == "" {
		tx.Status = entity.StatusPending
	}

	saved, err := s.store.Put(ctx, tx)
	if err != nil {
		s.logger.Error("Failed to store transaction", map[string]interface{}{
			"request_id": requestID,
			"id":         tx.ID,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.publish(entity.EventCreated, saved.ID, saved)

	if saved.IsCrypto() && s.scheduler != nil {
		s.scheduler.Schedule(saved.ID)
	}

	s.logger.Info("Transaction created", map[string]interface{}{
		"request_id":     requestID,
		"id":             saved.ID,
		"charity_id":     saved.CharityID,
		"payment_method": saved.PaymentMethod,
		"amount":         saved.Amount.String(),
	})

	return saved, nil
}

// UpdateTransaction merges the provided patch fields into the stored record
func (s *TransactionService) UpdateTransaction(ctx context.Context, id string, patch entity.TransactionPatch) (*entity.Transaction, error) {
	requestID := middleware.GetRequestID(ctx)

	if strings.TrimSpace(id) == "" {
		return nil, entity.NewValidationError("id", "Transaction ID cannot be null or empty")
	}
	if err := patch.Validate(); err != nil {
		s.logger.Warn("Invalid transaction update", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return nil, err
	}

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load transaction for update", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return nil, err
	}
	if existing == nil {
		s.logger.Warn("Transaction not found for update", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
		})
		return nil, nil
	}

	updated := existing.Clone()
	patch.ApplyTo(updated)
	updated.Touch(s.now())

	saved, err := s.store.Put(ctx, updated)
	if err != nil {
		s.logger.Error("Failed to store updated transaction", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.publish(entity.EventUpdated, saved.ID, saved)

	s.logger.Info("Transaction updated", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
		"status":     saved.Status,
	})

	return saved, nil
}

// DeleteTransaction removes a transaction and reports whether it existed
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	requestID := middleware.GetRequestID(ctx)

	if strings.TrimSpace(id) == "" {
		return false, entity.NewValidationError("id", "Transaction ID cannot be null or empty")
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete transaction", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return false, err
	}

	if !deleted {
		s.logger.Warn("Transaction not found for deletion", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
		})
		return false, nil
	}

	s.publish(entity.EventDeleted, id, nil)

	s.logger.Info("Transaction deleted", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
	})

	return true, nil
}

// ListByCharity returns one page of a charity's transactions in store order
func (s *TransactionService) ListByCharity(ctx context.Context, charityID string, page, size int) ([]*entity.Transaction, error) {
	if strings.TrimSpace(charityID) == "" {
		return nil, entity.NewValidationError("charityId", "Charity ID cannot be null or empty")
	}
	if err := validatePage(page, size); err != nil {
		return nil, err
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list transactions for charity", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"charity_id": charityID,
			"error":      err.Error(),
		})
		return nil, err
	}

	return query.Paginate(query.FilterByCharity(all, charityID), page, size), nil
}

// ListByDateRange returns every transaction created within [start, end]
func (s *TransactionService) ListByDateRange(ctx context.Context, start, end time.Time) ([]*entity.Transaction, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return query.FilterByDateRange(all, start, end), nil
}

// ListByAmountRange returns every transaction whose amount lies within [minAmount, maxAmount]
func (s *TransactionService) ListByAmountRange(ctx context.Context, minAmount, maxAmount decimal.Decimal) ([]*entity.Transaction, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return query.FilterByAmountRange(all, minAmount, maxAmount), nil
}

// GetStats aggregates the current collection
func (s *TransactionService) GetStats(ctx context.Context) (*entity.StatsReport, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		s.logger.Error("Failed to calculate transaction statistics", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"error":      err.Error(),
		})
		return nil, err
	}

	return query.Stats(all, s.now()), nil
}

func (s *TransactionService) publish(kind entity.EventType, id string, tx *entity.Transaction) {
	s.events.Publish(entity.TransactionEvent{
		Type:          kind,
		TransactionID: id,
		Transaction:   tx,
		Timestamp:     s.now(),
	})
}

func validatePage(page, size int) error {
	if page < 0 {
		return entity.NewValidationError("page", "Page index must not be negative")
	}
	if size < 1 {
		return entity.NewValidationError("size", "Page size must be at least 1")
	}
	return nil
}
