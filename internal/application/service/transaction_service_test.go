package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	domainservice "github.com/damon-houk/donation-transaction-service/internal/domain/service"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/damon-houk/donation-transaction-service/internal/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var generatedID = regexp.MustCompile(`^TXN-\d+-[0-9a-f]{8}$`)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(store *mocks.MockTransactionStore, scheduler Scheduler, events *mocks.MockEventPublisher) *TransactionService {
	var publisher domainservice.EventPublisher
	if events != nil {
		publisher = events
	}
	svc := NewTransactionService(store, scheduler, publisher, logger.NewNopLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func validCandidate() *entity.Transaction {
	return &entity.Transaction{
		Amount:        decimal.RequireFromString("25.50"),
		CharityID:     "charity-A",
		DonorName:     "Ada",
		PaymentMethod: "CARD",
	}
}

// echoPut makes the mock store return whatever it was given
func echoPut(store *mocks.MockTransactionStore) *mock.Call {
	return store.On("Put", mock.Anything, mock.AnythingOfType("*entity.Transaction")).
		Return(func(_ context.Context, tx *entity.Transaction) *entity.Transaction { return tx }, nil)
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid non-crypto transaction", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		scheduler := new(mocks.MockScheduler)
		events := new(mocks.MockEventPublisher)
		svc := newTestService(store, scheduler, events)

		store.On("Put", ctx, mock.MatchedBy(func(tx *entity.Transaction) bool {
			return tx.Status == entity.StatusPending && tx.CreatedAt.Equal(fixedNow) && generatedID.MatchString(tx.ID)
		})).Return(func(_ context.Context, tx *entity.Transaction) *entity.Transaction { return tx }, nil).Once()
		events.On("Publish", mock.MatchedBy(func(e entity.TransactionEvent) bool {
			return e.Type == entity.EventCreated
		})).Once()

		tx, err := svc.CreateTransaction(ctx, validCandidate())

		require.NoError(t, err)
		assert.Equal(t, entity.StatusPending, tx.Status)
		assert.True(t, tx.Amount.IsPositive())
		assert.Regexp(t, generatedID, tx.ID)
		assert.Empty(t, tx.TransactionHash)
		assert.Nil(t, tx.UpdatedAt)
		store.AssertExpectations(t)
		events.AssertExpectations(t)
		scheduler.AssertNotCalled(t, "Schedule", mock.Anything)
	})

	t.Run("Crypto transaction schedules confirmation", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		scheduler := new(mocks.MockScheduler)
		svc := newTestService(store, scheduler, nil)

		echoPut(store).Once()
		scheduler.On("Schedule", mock.AnythingOfType("string")).Once()

		candidate := validCandidate()
		candidate.PaymentMethod = "crypto"

		tx, err := svc.CreateTransaction(ctx, candidate)

		require.NoError(t, err)
		assert.Equal(t, entity.StatusPending, tx.Status)
		scheduler.AssertCalled(t, "Schedule", tx.ID)
	})

	t.Run("Supplied id and creation time are kept", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		echoPut(store).Once()

		created := fixedNow.Add(-time.Hour)
		candidate := validCandidate()
		candidate.ID = "custom-id"
		candidate.CreatedAt = created

		tx, err := svc.CreateTransaction(ctx, candidate)

		require.NoError(t, err)
		assert.Equal(t, "custom-id", tx.ID)
		assert.Equal(t, created, tx.CreatedAt)
	})

	t.Run("Candidate is not mutated", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		echoPut(store).Once()

		candidate := validCandidate()
		_, err := svc.CreateTransaction(ctx, candidate)

		require.NoError(t, err)
		assert.Empty(t, candidate.ID)
		assert.Empty(t, candidate.Status)
	})

	invalid := map[string]func(*entity.Transaction){
		"Zero amount":            func(tx *entity.Transaction) { tx.Amount = decimal.Zero },
		"Negative amount":        func(tx *entity.Transaction) { tx.Amount = decimal.NewFromInt(-5) },
		"Blank charity":          func(tx *entity.Transaction) { tx.CharityID = "  " },
		"Missing donor":          func(tx *entity.Transaction) { tx.DonorName = "" },
		"Missing payment method": func(tx *entity.Transaction) { tx.PaymentMethod = "" },
		"Unknown status":         func(tx *entity.Transaction) { tx.Status = "SETTLED" },
	}

	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			store := new(mocks.MockTransactionStore)
			svc := newTestService(store, nil, nil)

			candidate := validCandidate()
			mutate(candidate)

			tx, err := svc.CreateTransaction(ctx, candidate)

			assert.Nil(t, tx)
			assert.ErrorIs(t, err, entity.ErrInvalidArgument)
			store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
		})
	}

	t.Run("Store error", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		scheduler := new(mocks.MockScheduler)
		svc := newTestService(store, scheduler, nil)

		storeErr := errors.New("repository error")
		store.On("Put", ctx, mock.Anything).Return(nil, storeErr).Once()

		candidate := validCandidate()
		candidate.PaymentMethod = "CRYPTO"

		tx, err := svc.CreateTransaction(ctx, candidate)

		assert.Nil(t, tx)
		assert.Same(t, storeErr, err)
		scheduler.AssertNotCalled(t, "Schedule", mock.Anything)
	})
}

func TestGetTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		existing := validCandidate()
		existing.ID = "TXN-1-aaaaaaaa"
		store.On("Get", ctx, existing.ID).Return(existing, nil).Once()

		tx, err := svc.GetTransaction(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, existing, tx)
	})

	t.Run("Not found is a nil result", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("Get", ctx, "missing").Return(nil, nil).Once()

		tx, err := svc.GetTransaction(ctx, "missing")
		assert.NoError(t, err)
		assert.Nil(t, tx)
	})

	t.Run("Blank id", func(t *testing.T) {
		svc := newTestService(new(mocks.MockTransactionStore), nil, nil)
		_, err := svc.GetTransaction(ctx, " ")
		assert.ErrorIs(t, err, entity.ErrInvalidArgument)
	})
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()

	stored := func() *entity.Transaction {
		tx := validCandidate()
		tx.ID = "TXN-1-bbbbbbbb"
		tx.Status = entity.StatusPending
		tx.Message = "original message"
		tx.TransactionHash = "0xabc"
		tx.CreatedAt = fixedNow.Add(-time.Hour)
		return tx
	}

	t.Run("Status only leaves other fields", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		events := new(mocks.MockEventPublisher)
		svc := newTestService(store, nil, events)

		existing := stored()
		store.On("Get", ctx, existing.ID).Return(existing, nil).Once()
		echoPut(store).Once()
		events.On("Publish", mock.MatchedBy(func(e entity.TransactionEvent) bool {
			return e.Type == entity.EventUpdated && e.TransactionID == existing.ID
		})).Once()

		status := entity.StatusConfirmed
		tx, err := svc.UpdateTransaction(ctx, existing.ID, entity.TransactionPatch{Status: &status})

		require.NoError(t, err)
		assert.Equal(t, entity.StatusConfirmed, tx.Status)
		assert.True(t, tx.Amount.Equal(existing.Amount))
		assert.Equal(t, "original message", tx.Message)
		assert.Equal(t, "0xabc", tx.TransactionHash)
		assert.Equal(t, existing.CreatedAt, tx.CreatedAt)
		require.NotNil(t, tx.UpdatedAt)
		assert.Equal(t, fixedNow, *tx.UpdatedAt)
		// The record read from the store is not modified in place
		assert.Equal(t, entity.StatusPending, existing.Status)
		events.AssertExpectations(t)
	})

	t.Run("All fields", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)

		existing := stored()
		store.On("Get", ctx, existing.ID).Return(existing, nil).Once()
		echoPut(store).Once()

		amount := decimal.NewFromInt(99)
		status := entity.StatusFailed
		message := "thanks"
		hash := "0xdef"
		tx, err := svc.UpdateTransaction(ctx, existing.ID, entity.TransactionPatch{
			Amount: &amount, Status: &status, Message: &message, TransactionHash: &hash,
		})

		require.NoError(t, err)
		assert.True(t, tx.Amount.Equal(amount))
		assert.Equal(t, entity.StatusFailed, tx.Status)
		assert.Equal(t, "thanks", tx.Message)
		assert.Equal(t, "0xdef", tx.TransactionHash)
	})

	t.Run("Blank strings do not overwrite", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)

		existing := stored()
		store.On("Get", ctx, existing.ID).Return(existing, nil).Once()
		echoPut(store).Once()

		blank := ""
		tx, err := svc.UpdateTransaction(ctx, existing.ID, entity.TransactionPatch{Message: &blank, TransactionHash: &blank})

		require.NoError(t, err)
		assert.Equal(t, "original message", tx.Message)
		assert.Equal(t, "0xabc", tx.TransactionHash)
		assert.NotNil(t, tx.UpdatedAt)
	})

	t.Run("Not found does not write", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("Get", ctx, "missing").Return(nil, nil).Once()

		status := entity.StatusConfirmed
		tx, err := svc.UpdateTransaction(ctx, "missing", entity.TransactionPatch{Status: &status})

		assert.NoError(t, err)
		assert.Nil(t, tx)
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	})

	t.Run("Non-positive amount is rejected", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)

		amount := decimal.NewFromInt(0)
		_, err := svc.UpdateTransaction(ctx, "TXN-1-bbbbbbbb", entity.TransactionPatch{Amount: &amount})

		assert.ErrorIs(t, err, entity.ErrInvalidArgument)
		store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Store error on load", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		storeErr := errors.New("boom")
		store.On("Get", ctx, "id").Return(nil, storeErr).Once()

		_, err := svc.UpdateTransaction(ctx, "id", entity.TransactionPatch{})
		assert.Same(t, storeErr, err)
	})
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	store := new(mocks.MockTransactionStore)
	events := new(mocks.MockEventPublisher)
	svc := newTestService(store, nil, events)

	store.On("Delete", ctx, "TXN-1-cccccccc").Return(true, nil).Once()
	store.On("Delete", ctx, "TXN-1-cccccccc").Return(false, nil).Once()
	events.On("Publish", mock.MatchedBy(func(e entity.TransactionEvent) bool {
		return e.Type == entity.EventDeleted && e.TransactionID == "TXN-1-cccccccc"
	})).Once()

	deleted, err := svc.DeleteTransaction(ctx, "TXN-1-cccccccc")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteTransaction(ctx, "TXN-1-cccccccc")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = svc.DeleteTransaction(ctx, "")
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	store.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()

	snapshot := func() []*entity.Transaction {
		var txs []*entity.Transaction
		for i, amount := range []int64{30, 10, 50, 20, 40} {
			txs = append(txs, &entity.Transaction{
				ID:            string(rune('a' + i)),
				Amount:        decimal.NewFromInt(amount),
				CharityID:     "A",
				DonorName:     "d",
				PaymentMethod: "CARD",
				Status:        entity.StatusPending,
				CreatedAt:     fixedNow.Add(time.Duration(i) * time.Minute),
			})
		}
		txs[1].CharityID = "B"
		return txs
	}

	t.Run("List sorts and pages", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("ListAll", ctx).Return(snapshot(), nil).Once()

		page, err := svc.ListTransactions(ctx, ListOptions{Page: 1, Size: 2, SortBy: "amount", SortDir: "asc"})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "30", page[0].Amount.String())
		assert.Equal(t, "40", page[1].Amount.String())
	})

	t.Run("List rejects bad paging", func(t *testing.T) {
		svc := newTestService(new(mocks.MockTransactionStore), nil, nil)
		_, err := svc.ListTransactions(ctx, ListOptions{Page: -1, Size: 20})
		assert.ErrorIs(t, err, entity.ErrInvalidArgument)
		_, err = svc.ListTransactions(ctx, ListOptions{Page: 0, Size: 0})
		assert.ErrorIs(t, err, entity.ErrInvalidArgument)
	})

	t.Run("List store failure", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("ListAll", ctx).Return(nil, entity.ErrStoreFailure).Once()

		_, err := svc.ListTransactions(ctx, DefaultListOptions())
		assert.ErrorIs(t, err, entity.ErrStoreFailure)
	})

	t.Run("By charity", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("ListAll", ctx).Return(snapshot(), nil).Once()

		txs, err := svc.ListByCharity(ctx, "B", 0, 10)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "b", txs[0].ID)

		_, err = svc.ListByCharity(ctx, "", 0, 10)
		assert.ErrorIs(t, err, entity.ErrInvalidArgument)
	})

	t.Run("By amount range", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("ListAll", ctx).Return(snapshot(), nil).Once()

		txs, err := svc.ListByAmountRange(ctx, decimal.NewFromInt(40), decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("By date range", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("ListAll", ctx).Return(snapshot(), nil).Once()

		txs, err := svc.ListByDateRange(ctx, fixedNow.Add(time.Minute), fixedNow.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("Stats", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("ListAll", ctx).Return(snapshot(), nil).Once()

		report, err := svc.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, report.TotalTransactions)
		assert.Equal(t, "150", report.TotalAmount.String())
		require.NotNil(t, report.AverageAmount)
		assert.Equal(t, "30.00", report.AverageAmount.StringFixed(2))
		assert.Equal(t, int64(5), report.RecentTransactions)
	})

	t.Run("Stats on empty store", func(t *testing.T) {
		store := new(mocks.MockTransactionStore)
		svc := newTestService(store, nil, nil)
		store.On("ListAll", ctx).Return([]*entity.Transaction{}, nil).Once()

		report, err := svc.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.TotalTransactions)
		assert.True(t, report.TotalAmount.IsZero())
		assert.Nil(t, report.AverageAmount)
	})
}

func TestStoreErrorIsLogged(t *testing.T) {
	ctx := context.Background()
	store := new(mocks.MockTransactionStore)
	log := new(mocks.MockLogger)
	svc := NewTransactionService(store, nil, nil, log)

	store.On("ListAll", ctx).Return(nil, errors.New("disk gone")).Once()
	log.On("Error", "Failed to calculate transaction statistics", mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["error"] == "disk gone" && fields["request_id"] == "unknown"
	})).Once()

	_, err := svc.GetStats(ctx)
	assert.Error(t, err)
	log.AssertExpectations(t)
}
