package internal

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/application/service"
	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/blockchain"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/db"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformance(t *testing.T) {
	// Skip in short mode or CI
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	badgerDB, err := db.OpenBadger(t.TempDir(), false)
	require.NoError(t, err)
	txRepo := db.NewBadgerTransactionRepository(badgerDB)
	defer txRepo.Close()

	log := logger.NewNopLogger()
	scheduler := service.NewConfirmationScheduler(txRepo, blockchain.NewSimulatedConfirmer(log), log,
		service.WithDelay(10*time.Millisecond))
	txService := service.NewTransactionService(txRepo, scheduler, nil, log)

	// Performance test configuration
	numTransactions := 100
	concurrency := 10

	t.Log("Preloading test data...")
	txIDs := preloadTestData(t, txService, numTransactions)

	t.Run("Transaction Creation", func(t *testing.T) {
		startTime := time.Now()

		wg := sync.WaitGroup{}
		wg.Add(concurrency)

		txPerWorker := numTransactions / concurrency

		for i := 0; i < concurrency; i++ {
			go func(workerID int) {
				defer wg.Done()

				ctx := context.Background()
				for j := 0; j < txPerWorker; j++ {
					method := "CARD"
					if j%3 == 0 {
						method = "CRYPTO"
					}

					_, err := txService.CreateTransaction(ctx, &entity.Transaction{
						Amount:        decimal.New(int64(100+rand.Intn(10000)), -2),
						CharityID:     fmt.Sprintf("charity-%d", workerID%3),
						DonorName:     fmt.Sprintf("Donor %d-%d", workerID, j),
						PaymentMethod: method,
					})
					if err != nil {
						t.Logf("Error creating transaction: %v", err)
					}
				}
			}(i)
		}

		wg.Wait()
		duration := time.Since(startTime)

		throughput := float64(numTransactions) / duration.Seconds()
		t.Logf("Transaction creation: %d transactions in %v (%.2f tx/sec)",
			numTransactions, duration, throughput)
	})

	t.Run("Transaction Retrieval", func(t *testing.T) {
		startTime := time.Now()

		wg := sync.WaitGroup{}
		wg.Add(concurrency)

		txPerWorker := numTransactions / concurrency

		for i := 0; i < concurrency; i++ {
			go func(workerID int) {
				defer wg.Done()

				ctx := context.Background()
				for j := 0; j < txPerWorker; j++ {
					idx := (workerID*txPerWorker + j) % len(txIDs)
					if _, err := txService.GetTransaction(ctx, txIDs[idx]); err != nil {
						t.Logf("Error retrieving transaction: %v", err)
					}
				}
			}(i)
		}

		wg.Wait()
		duration := time.Since(startTime)

		throughput := float64(numTransactions) / duration.Seconds()
		t.Logf("Transaction retrieval: %d transactions in %v (%.2f tx/sec)",
			numTransactions, duration, throughput)
	})

	t.Run("Listing And Stats", func(t *testing.T) {
		startTime := time.Now()
		ctx := context.Background()

		for i := 0; i < concurrency; i++ {
			opts := service.DefaultListOptions()
			opts.Page = i
			opts.SortBy = "amount"
			if _, err := txService.ListTransactions(ctx, opts); err != nil {
				t.Logf("Error listing transactions: %v", err)
			}
			if _, err := txService.GetStats(ctx); err != nil {
				t.Logf("Error computing stats: %v", err)
			}
		}

		t.Logf("Listing and stats: %d rounds in %v", concurrency, time.Since(startTime))
	})

	// Every crypto confirmation must settle without losing a record
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, scheduler.Wait(ctx))

	stats, err := txService.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*numTransactions, stats.TotalTransactions)
	assert.Zero(t, stats.TransactionsByStatus[string(entity.StatusFailed)])
}

// preloadTestData creates test transactions and returns their IDs
func preloadTestData(t *testing.T, txService *service.TransactionService, count int) []string {
	ids := make([]string, count)
	ctx := context.Background()

	for i := 0; i < count; i++ {
		tx, err := txService.CreateTransaction(ctx, &entity.Transaction{
			Amount:        decimal.NewFromInt(int64(100 + i)),
			CharityID:     "charity-preload",
			DonorName:     fmt.Sprintf("Preloaded donor %d", i),
			PaymentMethod: "CARD",
		})
		if err != nil {
			t.Fatalf("Failed to preload test data: %v", err)
		}

		ids[i] = tx.ID
	}

	return ids
}
