// Package query holds the pure list, filter and aggregate functions that run over a
// snapshot of transactions. Nothing here touches the store.
package query

import (
	"slices"
	"strings"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Sort fields understood by Sort
const (
	SortByAmount    = "amount"
	SortByCreatedAt = "createdAt"
)

// Defaults for the list parameters
const (
	DefaultPage    = 0
	DefaultSize    = 20
	DefaultSortBy  = SortByCreatedAt
	DefaultSortDir = "desc"
)

// RecentWindow is how far back a transaction still counts as recent in Stats
const RecentWindow = 30 * 24 * time.Hour

// Sort orders the snapshot in place by amount or createdAt. Any other sortBy leaves the
// order untouched. The direction is ascending unless sortDir equals "desc" ignoring case.
func Sort(txs []*entity.Transaction, sortBy, sortDir string) {
	desc := strings.EqualFold(sortDir, "desc")

	var cmp func(a, b *entity.Transaction) int
	switch sortBy {
	case SortByAmount:
		cmp = func(a, b *entity.Transaction) int {
			return amountOf(a).Cmp(amountOf(b))
		}
	case SortByCreatedAt:
		cmp = func(a, b *entity.Transaction) int {
			return createdAtOf(a).Compare(createdAtOf(b))
		}
	default:
		return
	}

	if desc {
		asc := cmp
		cmp = func(a, b *entity.Transaction) int { return asc(b, a) }
	}

	slices.SortStableFunc(txs, cmp)
}

// Paginate returns the zero-based page of the given size, or an empty slice when the
// page starts past the end
func Paginate(txs []*entity.Transaction, page, size int) []*entity.Transaction {
	if page < 0 || size <= 0 {
		return []*entity.Transaction{}
	}

	total := len(txs)
	start := page * size
	if start >= total || start < 0 {
		return []*entity.Transaction{}
	}

	end := min(start+size, total)
	return txs[start:end]
}

// List sorts then paginates the snapshot
func List(txs []*entity.Transaction, page, size int, sortBy, sortDir string) []*entity.Transaction {
	Sort(txs, sortBy, sortDir)
	return Paginate(txs, page, size)
}

// FilterByCharity keeps records whose charity id matches exactly, in snapshot order
func FilterByCharity(txs []*entity.Transaction, charityID string) []*entity.Transaction {
	return filter(txs, func(tx *entity.Transaction) bool {
		return tx.CharityID == charityID
	})
}

// FilterByDateRange keeps records created within [start, end]. Records without a
// creation time are excluded.
func FilterByDateRange(txs []*entity.Transaction, start, end time.Time) []*entity.Transaction {
	return filter(txs, func(tx *entity.Transaction) bool {
		if tx.CreatedAt.IsZero() {
			return false
		}
		return !tx.CreatedAt.Before(start) && !tx.CreatedAt.After(end)
	})
}

// FilterByAmountRange keeps records whose amount lies within [minAmount, maxAmount]
func FilterByAmountRange(txs []*entity.Transaction, minAmount, maxAmount decimal.Decimal) []*entity.Transaction {
	return filter(txs, func(tx *entity.Transaction) bool {
		return tx.Amount.GreaterThanOrEqual(minAmount) && tx.Amount.LessThanOrEqual(maxAmount)
	})
}

// Stats aggregates the snapshot as of now
func Stats(txs []*entity.Transaction, now time.Time) *entity.StatsReport {
	report := &entity.StatsReport{
		TotalTransactions:           len(txs),
		TotalAmount:                 decimal.Zero,
		TransactionsByStatus:        make(map[string]int64),
		TransactionsByPaymentMethod: make(map[string]int64),
	}

	recentSince := now.Add(-RecentWindow)

	for _, tx := range txs {
		if tx == nil {
			continue
		}
		report.TotalAmount = report.TotalAmount.Add(amountOf(tx))
		report.TransactionsByStatus[bucket(string(tx.Status))]++
		report.TransactionsByPaymentMethod[bucket(tx.PaymentMethod)]++

		if !tx.CreatedAt.IsZero() && tx.CreatedAt.After(recentSince) {
			report.RecentTransactions++
		}
	}

	if len(txs) > 0 {
		// DivRound rounds half away from zero, which is half-up for non-negative sums
		avg := report.TotalAmount.DivRound(decimal.NewFromInt(int64(len(txs))), 2)
		report.AverageAmount = &avg
	}

	return report
}

func filter(txs []*entity.Transaction, keep func(*entity.Transaction) bool) []*entity.Transaction {
	out := make([]*entity.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx != nil && keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

func amountOf(tx *entity.Transaction) decimal.Decimal {
	if tx == nil {
		return decimal.Zero
	}
	return tx.Amount
}

func createdAtOf(tx *entity.Transaction) time.Time {
	if tx == nil {
		return time.Time{}
	}
	return tx.CreatedAt
}

func bucket(key string) string {
	if strings.TrimSpace(key) == "" {
		return entity.UnknownBucket
	}
	return key
}
