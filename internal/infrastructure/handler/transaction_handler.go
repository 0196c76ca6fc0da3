package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/application/service"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// TransactionHandler handles HTTP requests for transactions
type TransactionHandler struct {
	service *service.TransactionService
	logger  logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service *service.TransactionService, log logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger.OrDefault(log),
	}
}

// ListTransactions handles GET /api/transactions?page&size&sortBy&sortDir
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	opts := service.DefaultListOptions()
	q := r.URL.Query()

	var err error
	if opts.Page, err = intParam(q.Get("page"), opts.Page); err != nil {
		sendErrorResponse(w, h.logger, "Page must be an integer", http.StatusBadRequest, requestID)
		return
	}
	if opts.Size, err = intParam(q.Get("size"), opts.Size); err != nil {
		sendErrorResponse(w, h.logger, "Size must be an integer", http.StatusBadRequest, requestID)
		return
	}
	if v := q.Get("sortBy"); v != "" {
		opts.SortBy = v
	}
	if v := q.Get("sortDir"); v != "" {
		opts.SortDir = v
	}

	txs, err := h.service.ListTransactions(r.Context(), opts)
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to retrieve transactions", requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Transactions retrieved successfully", txs, requestID)
}

// GetTransaction handles retrieving a transaction by ID
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to retrieve transaction", requestID)
		return
	}
	if tx == nil {
		sendErrorResponse(w, h.logger, "Transaction not found", http.StatusNotFound, requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Transaction retrieved successfully", tx, requestID)
}

// CreateTransaction handles the creation of a new transaction
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request body", http.StatusBadRequest, requestID)
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), req.ToEntity())
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to create transaction", requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusCreated, "Transaction created successfully", tx, requestID)
}

// UpdateTransaction merges the body's fields into the stored transaction
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request body", http.StatusBadRequest, requestID)
		return
	}

	tx, err := h.service.UpdateTransaction(r.Context(), id, req.ToPatch())
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to update transaction", requestID)
		return
	}
	if tx == nil {
		sendErrorResponse(w, h.logger, "Transaction not found", http.StatusNotFound, requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Transaction updated successfully", tx, requestID)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	deleted, err := h.service.DeleteTransaction(r.Context(), id)
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to delete transaction", requestID)
		return
	}
	if !deleted {
		sendErrorResponse(w, h.logger, "Transaction not found", http.StatusNotFound, requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Transaction deleted successfully", nil, requestID)
}

// ListByCharity handles GET /api/transactions/charity/{charityId}?page&size
func (h *TransactionHandler) ListByCharity(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	charityID := mux.Vars(r)["charityId"]
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), service.DefaultListOptions().Page)
	if err != nil {
		sendErrorResponse(w, h.logger, "Page must be an integer", http.StatusBadRequest, requestID)
		return
	}
	size, err := intParam(q.Get("size"), service.DefaultListOptions().Size)
	if err != nil {
		sendErrorResponse(w, h.logger, "Size must be an integer", http.StatusBadRequest, requestID)
		return
	}

	txs, err := h.service.ListByCharity(r.Context(), charityID, page, size)
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to retrieve transactions", requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Transactions retrieved successfully", txs, requestID)
}

// ListByDateRange handles GET /api/transactions/range/date?start&end with RFC 3339 bounds
func (h *TransactionHandler) ListByDateRange(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		sendErrorResponse(w, h.logger, "start must be an RFC 3339 timestamp", http.StatusBadRequest, requestID)
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		sendErrorResponse(w, h.logger, "end must be an RFC 3339 timestamp", http.StatusBadRequest, requestID)
		return
	}

	txs, err := h.service.ListByDateRange(r.Context(), start, end)
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to retrieve transactions", requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Transactions retrieved successfully", txs, requestID)
}

// ListByAmountRange handles GET /api/transactions/range/amount?min&max
func (h *TransactionHandler) ListByAmountRange(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	minAmount, err := decimal.NewFromString(q.Get("min"))
	if err != nil {
		sendErrorResponse(w, h.logger, "min must be a decimal number", http.StatusBadRequest, requestID)
		return
	}
	maxAmount, err := decimal.NewFromString(q.Get("max"))
	if err != nil {
		sendErrorResponse(w, h.logger, "max must be a decimal number", http.StatusBadRequest, requestID)
		return
	}

	txs, err := h.service.ListByAmountRange(r.Context(), minAmount, maxAmount)
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to retrieve transactions", requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Transactions retrieved successfully", txs, requestID)
}

// GetStats handles GET /api/transactions/stats
func (h *TransactionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		sendServiceError(w, h.logger, err, "Failed to retrieve statistics", requestID)
		return
	}

	sendResponse(w, h.logger, http.StatusOK, "Statistics retrieved successfully", stats, requestID)
}

// RegisterRoutes registers the transaction handler routes. Fixed paths are registered
// before /{id} so they are never taken for an id.
func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/transactions").Subrouter()

	api.HandleFunc("", h.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("", h.CreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/charity/{charityId}", h.ListByCharity).Methods(http.MethodGet)
	api.HandleFunc("/range/date", h.ListByDateRange).Methods(http.MethodGet)
	api.HandleFunc("/range/amount", h.ListByAmountRange).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.GetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.UpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/{id}", h.DeleteTransaction).Methods(http.MethodDelete)

	h.logger.Info("Transaction routes registered", map[string]interface{}{
		"routes": []string{
			"GET /api/transactions",
			"POST /api/transactions",
			"GET /api/transactions/stats",
			"GET /api/transactions/charity/{charityId}",
			"GET /api/transactions/range/date",
			"GET /api/transactions/range/amount",
			"GET /api/transactions/{id}",
			"PUT /api/transactions/{id}",
			"DELETE /api/transactions/{id}",
		},
	})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return n, nil
}
