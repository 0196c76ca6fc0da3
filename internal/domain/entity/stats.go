package entity

import (
	"github.com/shopspring/decimal"
)

// UnknownBucket groups records whose status or payment method is empty
const UnknownBucket = "UNKNOWN"

// StatsReport aggregates the whole transaction collection
type StatsReport struct {
	TotalTransactions           int              `json:"totalTransactions"`
	TotalAmount                 decimal.Decimal  `json:"totalAmount"`
	AverageAmount               *decimal.Decimal `json:"averageAmount,omitempty"`
	TransactionsByStatus        map[string]int64 `json:"transactionsByStatus"`
	TransactionsByPaymentMethod map[string]int64 `json:"transactionsByPaymentMethod"`
	RecentTransactions          int64            `json:"recentTransactions"`
}
