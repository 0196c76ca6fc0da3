package db

import (
	"context"
	"fmt"
	"os"

	"github.com/damon-houk/donation-transaction-service/internal/domain/repository"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/config"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
)

// Store is a TransactionStore that owns resources released on shutdown
type Store interface {
	repository.TransactionStore
	Close() error
}

// Open builds the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (Store, error) {
	log = logger.OrDefault(log)

	switch cfg.Driver {
	case config.DriverBadger, "":
		if !cfg.Badger.InMemory {
			if err := os.MkdirAll(cfg.Badger.Path, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		bdb, err := OpenBadger(cfg.Badger.Path, cfg.Badger.InMemory)
		if err != nil {
			return nil, err
		}

		log.Info("Opened badger store", map[string]interface{}{
			"path":      cfg.Badger.Path,
			"in_memory": cfg.Badger.InMemory,
		})
		return NewBadgerTransactionRepository(bdb), nil

	case config.DriverSQLite:
		store, err := NewSQLiteTransactionRepository(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}

		log.Info("Opened sqlite store", map[string]interface{}{
			"path": cfg.SQLite.Path,
		})
		return store, nil

	case config.DriverDynamoDB:
		client, err := NewDynamoDBClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}

		log.Info("Using dynamodb store", map[string]interface{}{
			"table":    cfg.DynamoDB.Table,
			"region":   cfg.DynamoDB.Region,
			"endpoint": cfg.DynamoDB.Endpoint,
		})
		return nopCloser{NewDynamoDBTransactionRepository(client, cfg.DynamoDB.Table)}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// nopCloser adapts a store with nothing to release
type nopCloser struct {
	repository.TransactionStore
}

func (nopCloser) Close() error { return nil }
