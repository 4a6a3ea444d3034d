package handlers

import (
	"context"
	"net/http"

	"github.com/upb/billbuddy/middleware"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/utils"
	"go.uber.org/zap"
)

// QueryService answers plan questions
type QueryService interface {
	Answer(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error)
}

// QueryHandler handles the ask endpoint
type QueryHandler struct {
	service QueryService
	logger  *zap.Logger
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(service QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAsk handles POST /api/billbuddy/ask. The response body is the
// QueryResponse itself; failures carry the session id in details.
func (h *QueryHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.LoggerFromContext(ctx, h.logger)

	var req models.QueryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		logger.Warn("failed to parse request body", zap.Error(err))
		HandleValidationError(w, err, logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	resp, err := h.service.Answer(ctx, &req)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("failed to write query response",
			zap.String("session_id", resp.SessionID),
			zap.Error(err))
	}
}
