package handler

import (
	"net/http"

	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// EventFeedPath is where websocket clients subscribe to transaction events
const EventFeedPath = "/ws/transactions"

// NewRouter wires the transaction routes, the optional event feed and the middleware chain
func NewRouter(txHandler *TransactionHandler, eventFeed http.Handler, allowedOrigins []string, log logger.Logger) http.Handler {
	log = logger.OrDefault(log)
	router := mux.NewRouter()

	txHandler.RegisterRoutes(router)

	if eventFeed != nil {
		router.Handle(EventFeedPath, eventFeed).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendErrorResponse(w, log, "Resource not found", http.StatusNotFound, middleware.GetRequestID(r.Context()))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendErrorResponse(w, log, "Method not allowed", http.StatusMethodNotAllowed, middleware.GetRequestID(r.Context()))
	})

	router.Use(
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(log),
		middleware.RecoveryMiddleware(log),
	)

	// CORS wraps the router so preflight requests are answered before route matching
	return middleware.CORSMiddleware(allowedOrigins)(router)
}
