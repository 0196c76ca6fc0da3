package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/damon-houk/donation-transaction-service/internal/application/service"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/blockchain"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/config"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/db"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/handler"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/realtime"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (defaults to ./config.yaml when present)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	level, _ := logger.ParseLevel(cfg.Log.Level)
	log := logger.NewJSONLogger(os.Stdout, level)
	logger.SetDefaultLogger(log)

	log.Info("Starting donation transaction service", map[string]interface{}{
		"port":         cfg.Server.Port,
		"store_driver": cfg.Store.Driver,
		"log_level":    level,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing store", map[string]interface{}{"error": err.Error()})
		}
	}()

	hub := realtime.NewHub(log, realtime.WithAllowedOrigins(cfg.CORS.AllowedOrigins))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	confirmer := blockchain.NewSimulatedConfirmer(log, blockchain.WithFailureRate(cfg.Confirmation.FailureRate))
	scheduler := service.NewConfirmationScheduler(store, confirmer, log,
		service.WithDelay(cfg.Confirmation.Delay),
		service.WithEventPublisher(hub),
	)

	txService := service.NewTransactionService(store, scheduler, hub, log)
	txHandler := handler.NewTransactionHandler(txService, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.NewRouter(txHandler, hub, cfg.CORS.AllowedOrigins, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", map[string]interface{}{"error": err.Error()})
	}

	stopHub()

	// Confirmations write to the store, so they finish before it is closed
	if err := scheduler.Wait(shutdownCtx); err != nil {
		log.Warn("Confirmations still running at shutdown", map[string]interface{}{
			"error":   err.Error(),
			"pending": scheduler.Pending(),
		})
	}

	log.Info("Server stopped", nil)
	return nil
}
