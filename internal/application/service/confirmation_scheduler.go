package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/damon-houk/donation-transaction-service/internal/domain/repository"
	domainservice "github.com/damon-houk/donation-transaction-service/internal/domain/service"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
)

// DefaultConfirmationDelay is the simulated time a crypto transaction takes to settle
const DefaultConfirmationDelay = 2 * time.Second

// ConfirmationScheduler runs the detached confirmation task for crypto transactions.
//
// A task is handed only the transaction id. After the delay it re-reads the record and
// writes back status, hash and updatedAt on top of whatever is stored at that moment, so
// explicit updates made while the task slept are kept. Tasks cannot be cancelled.
type ConfirmationScheduler struct {
	store     repository.TransactionStore
	confirmer domainservice.BlockchainConfirmer
	events    domainservice.EventPublisher
	logger    logger.Logger
	delay     time.Duration
	now       func() time.Time

	wg      sync.WaitGroup
	mutex   sync.RWMutex
	pending map[string]time.Time
}

// SchedulerOption customises a ConfirmationScheduler
type SchedulerOption func(*ConfirmationScheduler)

// WithDelay sets the simulated confirmation delay
func WithDelay(d time.Duration) SchedulerOption {
	return func(s *ConfirmationScheduler) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithEventPublisher sets where confirmation outcomes are announced
func WithEventPublisher(p domainservice.EventPublisher) SchedulerOption {
	return func(s *ConfirmationScheduler) {
		if p != nil {
			s.events = p
		}
	}
}

// WithSchedulerClock overrides the time source, for tests
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *ConfirmationScheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewConfirmationScheduler creates a scheduler writing to store
func NewConfirmationScheduler(store repository.TransactionStore, confirmer domainservice.BlockchainConfirmer, log logger.Logger, opts ...SchedulerOption) *ConfirmationScheduler {
	s := &ConfirmationScheduler{
		store:     store,
		confirmer: confirmer,
		events:    domainservice.NopPublisher{},
		logger:    logger.OrDefault(log).WithField("component", "confirmation"),
		delay:     DefaultConfirmationDelay,
		now:       time.Now,
		pending:   make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Schedule starts the confirmation task for id and returns immediately
func (s *ConfirmationScheduler) Schedule(id string) {
	s.mutex.Lock()
	s.pending[id] = s.now()
	s.mutex.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.done(id)

		s.run(id)
	}()

	s.logger.Info("Confirmation scheduled", map[string]interface{}{
		"transaction_id": id,
		"delay_ms":       s.delay.Milliseconds(),
	})
}

// Pending returns the number of tasks that have not finished yet
func (s *ConfirmationScheduler) Pending() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.pending)
}

// IsPending reports whether a task for id is still in flight
func (s *ConfirmationScheduler) IsPending(id string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.pending[id]
	return ok
}

// Wait blocks until every scheduled task has finished or ctx is done
func (s *ConfirmationScheduler) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d confirmations: %w", s.Pending(), ctx.Err())
	}
}

func (s *ConfirmationScheduler) done(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.pending, id)
}

// run is the task body. It never returns an error: nobody is waiting for one.
func (s *ConfirmationScheduler) run(id string) {
	// Detached from the request that scheduled it
	ctx := context.Background()
	log := s.logger.WithField("transaction_id", id)

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		log.Error("Failed to reload transaction for confirmation", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if current == nil {
		log.Warn("Transaction deleted before confirmation, skipping", nil)
		return
	}
	if current.Status != entity.StatusPending {
		log.Info("Transaction no longer pending, skipping confirmation", map[string]interface{}{
			"status": current.Status,
		})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, log, current, fmt.Errorf("confirmation panicked: %v", r))
		}
	}()

	log.Info("Processing blockchain transaction", nil)

	hash, err := s.confirmer.Confirm(ctx, current.Clone())
	if err != nil {
		s.fail(ctx, log, current, err)
		return
	}

	confirmed := current.Clone()
	confirmed.Status = entity.StatusConfirmed
	confirmed.TransactionHash = hash
	confirmed.Touch(s.now())

	saved, err := s.store.Put(ctx, confirmed)
	if err != nil {
		s.fail(ctx, log, current, fmt.Errorf("failed to persist confirmation: %w", err))
		return
	}

	log.Info("Blockchain transaction confirmed", map[string]interface{}{
		"transaction_hash": hash,
	})
	s.publish(entity.EventConfirmed, saved)
}

// fail records FAILED on top of the reloaded record. It is the end of the line: a failure
// here is only logged.
func (s *ConfirmationScheduler) fail(ctx context.Context, log logger.Logger, current *entity.Transaction, cause error) {
	log.Error("Blockchain confirmation failed", map[string]interface{}{
		"error": cause.Error(),
	})

	failed := current.Clone()
	failed.Status = entity.StatusFailed
	failed.Touch(s.now())

	saved, err := s.store.Put(ctx, failed)
	if err != nil {
		log.Error("Failed to record failed confirmation", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.publish(entity.EventFailed, saved)
}

func (s *ConfirmationScheduler) publish(kind entity.EventType, tx *entity.Transaction) {
	s.events.Publish(entity.TransactionEvent{
		Type:          kind,
		TransactionID: tx.ID,
		Transaction:   tx,
		Timestamp:     s.now(),
	})
}
