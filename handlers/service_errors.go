package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/billbuddy/services"
	"github.com/upb/billbuddy/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Details of the
// outermost domain error (the session id of a failed query, for one) are
// passed through to the client.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}
	message := userMessage(err)

	var writeErr error
	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsExternalError(err):
		logger.Warn("upstream provider error", zap.Error(err))
		writeErr = utils.WriteBadGateway(w, message, details)

	case services.IsTimeoutError(err):
		logger.Warn("request timed out", zap.Error(err))
		writeErr = utils.WriteGatewayTimeout(w, message, details)

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred", details)

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred", nil)
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// userMessage returns the message of the innermost domain error in the chain
func userMessage(err error) string {
	msg := ""
	for e := err; e != nil; e = errors.Unwrap(e) {
		if de, ok := e.(*services.DomainError); ok {
			msg = de.Message
		}
	}
	if msg == "" {
		return err.Error()
	}
	return msg
}
