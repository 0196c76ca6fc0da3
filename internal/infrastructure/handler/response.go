package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/damon-houk/donation-transaction-service/internal/infrastructure/logger"
)

// APIResponse is the envelope every endpoint answers with. Timestamp is epoch milliseconds.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// sendResponse writes a successful envelope
func sendResponse(w http.ResponseWriter, log logger.Logger, statusCode int, message string, data interface{}, requestID string) {
	writeEnvelope(w, log, statusCode, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		RequestID: requestID,
	})
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message string, statusCode int, requestID string) {
	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	writeEnvelope(w, log, statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		RequestID: requestID,
	})
}

// sendServiceError maps a service error onto a status code. Validation failures are
// reported with their message; anything else gets the opaque fallback.
func sendServiceError(w http.ResponseWriter, log logger.Logger, err error, fallback string, requestID string) {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		sendErrorResponse(w, log, verr.Message, http.StatusBadRequest, requestID)
	case errors.Is(err, entity.ErrInvalidArgument):
		sendErrorResponse(w, log, err.Error(), http.StatusBadRequest, requestID)
	default:
		log.Error(fallback, map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, fallback, http.StatusInternalServerError, requestID)
	}
}

func writeEnvelope(w http.ResponseWriter, log logger.Logger, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("Failed to encode response", map[string]interface{}{
			"request_id": resp.RequestID,
			"error":      err.Error(),
		})
	}
}
