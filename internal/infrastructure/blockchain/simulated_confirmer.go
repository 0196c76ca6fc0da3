// Package blockchain holds the confirmer used for crypto donations. No chain is contacted:
// confirmation is simulated and yields a random 0x-prefixed hash.
package blockchain

import (
	"context"
	"errors"
	"math/rand"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
)

// ErrConfirmationRejected is returned when the simulated network rejects a transaction
var ErrConfirmationRejected = errors.New("blockchain rejected transaction")

// SimulatedConfirmer implements service.BlockchainConfirmer
type SimulatedConfirmer struct {
	failureRate float64
	random      func() float64
	logger      logger.Logger
}

// Option customises a SimulatedConfirmer
type Option func(*SimulatedConfirmer)

// WithFailureRate sets the probability in [0,1] that a confirmation is rejected
func WithFailureRate(rate float64) Option {
	return func(c *SimulatedConfirmer) {
		c.failureRate = min(max(rate, 0), 1)
	}
}

// WithRandom replaces the random source, which must return values in [0,1)
func WithRandom(random func() float64) Option {
	return func(c *SimulatedConfirmer) {
		if random != nil {
			c.random = random
		}
	}
}

// NewSimulatedConfirmer creates a confirmer that always succeeds unless a failure rate is set
func NewSimulatedConfirmer(log logger.Logger, opts ...Option) *SimulatedConfirmer {
	c := &SimulatedConfirmer{
		random: rand.Float64,
		logger: logger.OrDefault(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Confirm returns the hash the transaction was settled under
func (c *SimulatedConfirmer) Confirm(ctx context.Context, tx *entity.Transaction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if c.failureRate > 0 && c.random() < c.failureRate {
		c.logger.Debug("Simulated confirmation rejected", map[string]interface{}{
			"transaction_id": tx.ID,
		})
		return "", ErrConfirmationRejected
	}

	hash, err := entity.NewTransactionHash()
	if err != nil {
		return "", err
	}

	c.logger.Debug("Simulated confirmation accepted", map[string]interface{}{
		"transaction_id":   tx.ID,
		"transaction_hash": hash,
	})
	return hash, nil
}
