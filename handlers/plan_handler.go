package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/billbuddy/middleware"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/services/catalog"
	"github.com/upb/billbuddy/services/indexing"
	"github.com/upb/billbuddy/utils"
	"go.uber.org/zap"
)

// CatalogService manages stored plans
type CatalogService interface {
	List(ctx context.Context, filter catalog.Filter) ([]models.Plan, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	Ingest(ctx context.Context, req *models.CreatePlanRequest) (*catalog.IngestResult, error)
	Reindex(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ReindexMissing(ctx context.Context) (*indexing.Report, error)
}

// PlanView is a plan as listed over HTTP
type PlanView struct {
	*models.Plan
	Indexed bool `json:"indexed"`
}

func newPlanView(p *models.Plan) PlanView {
	return PlanView{Plan: p, Indexed: p.IsIndexed()}
}

// PlanHandler handles plan catalog requests
type PlanHandler struct {
	service CatalogService
	logger  *zap.Logger
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(service CatalogService, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/billbuddy/plans?category=&minPrice=&maxPrice=
func (h *PlanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromContext(r.Context(), h.logger)

	filter, err := parseFilter(r)
	if err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	plans, err := h.service.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	views := make([]PlanView, len(plans))
	for i := range plans {
		views[i] = newPlanView(&plans[i])
	}
	_ = utils.WriteOK(w, views)
}

// HandleGet handles GET /api/billbuddy/plans/{id}
func (h *PlanHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromContext(r.Context(), h.logger)

	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	plan, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	_ = utils.WriteOK(w, newPlanView(plan))
}

// HandleCreate handles POST /api/billbuddy/plans. Plans that could not be
// indexed are still created; the response says so.
func (h *PlanHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromContext(r.Context(), h.logger)

	var req models.CreatePlanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	res, err := h.service.Ingest(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	_ = utils.WriteCreated(w, res)
}

// HandleReindex handles POST /api/billbuddy/plans/{id}/reindex
func (h *PlanHandler) HandleReindex(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromContext(r.Context(), h.logger)

	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	plan, err := h.service.Reindex(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	_ = utils.WriteOK(w, newPlanView(plan))
}

// HandleReindexMissing handles POST /api/billbuddy/plans/reindex
func (h *PlanHandler) HandleReindexMissing(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromContext(r.Context(), h.logger)

	report, err := h.service.ReindexMissing(r.Context())
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	_ = utils.WriteOK(w, report)
}

func parseFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()

	var filter catalog.Filter
	if c := q.Get("category"); c != "" {
		category, err := models.ParseCategory(c)
		if err != nil {
			return filter, err
		}
		filter.Category = category
	}

	var err error
	if filter.MinPrice, err = parsePrice(q.Get("minPrice"), "minPrice"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parsePrice(q.Get("maxPrice"), "maxPrice"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parsePrice(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &utils.ValidationError{
			Message: "Validation failed",
			Fields:  map[string]string{field: field + " must be a number"},
		}
	}
	return &v, nil
}
