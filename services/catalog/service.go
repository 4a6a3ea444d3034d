// Package catalog manages the plan records: listing, ingest and re-indexing.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"github.com/upb/billbuddy/services"
	"github.com/upb/billbuddy/services/indexing"
	"github.com/upb/billbuddy/utils"
	"go.uber.org/zap"
)

// Filter narrows a plan listing. Zero values match everything; a price bound
// excludes plans without a listed price.
type Filter struct {
	Category models.Category
	MinPrice *float64
	MaxPrice *float64
}

// Matches reports whether p passes the filter
func (f Filter) Matches(p *models.Plan) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice == nil && f.MaxPrice == nil {
		return true
	}
	if p.MonthlyPrice == nil {
		return false
	}
	if f.MinPrice != nil && *p.MonthlyPrice < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && *p.MonthlyPrice > *f.MaxPrice {
		return false
	}
	return true
}

// IngestResult reports whether an ingested plan was also indexed
type IngestResult struct {
	Plan       *models.Plan `json:"plan"`
	Indexed    bool         `json:"indexed"`
	IndexError string       `json:"indexError,omitempty"`
}

// Service handles plan catalog operations
type Service struct {
	plans   repositories.PlanRepository
	indexer *indexing.Indexer
	logger  *zap.Logger
}

// NewService creates a new catalog service
func NewService(plans repositories.PlanRepository, indexer *indexing.Indexer, logger *zap.Logger) *Service {
	return &Service{
		plans:   plans,
		indexer: indexer,
		logger:  logger,
	}
}

// List returns the plans matching filter in store order
func (s *Service) List(ctx context.Context, filter Filter) ([]models.Plan, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, services.InvalidArgument("minPrice cannot exceed maxPrice")
	}

	all, err := s.plans.GetAll(ctx)
	if err != nil {
		return nil, services.StoreFailure("failed to list plans", err)
	}

	out := make([]models.Plan, 0, len(all))
	for i := range all {
		if filter.Matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Get retrieves a plan by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.PlanNotFound(id.String())
		}
		return nil, services.StoreFailure("failed to get plan", err)
	}
	return plan, nil
}

// Ingest validates and saves a plan, then indexes it. Re-ingesting a plan with
// the same provider and name updates it in place. An indexing failure does not
// fail the ingest: the plan stays stored without an embedding until reindexed.
func (s *Service) Ingest(ctx context.Context, req *models.CreatePlanRequest) (*IngestResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		de := services.InvalidArgument("invalid plan")
		if fields := utils.GetValidationFields(err); fields != nil {
			de.WithDetail("fields", fields)
		}
		return nil, de
	}

	plan, err := req.ToPlan()
	if err != nil {
		return nil, services.InvalidArgument(err.Error())
	}

	existing, err := s.plans.GetByID(ctx, plan.ID)
	switch {
	case err == nil:
		plan.CreatedAt = existing.CreatedAt
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, services.StoreFailure("failed to look up plan", err)
	}

	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, services.StoreFailure("failed to save plan", err)
	}

	s.logger.Info("plan ingested",
		zap.String("plan_id", plan.ID.String()),
		zap.String("provider", plan.Provider),
		zap.String("name", plan.Name),
		zap.Bool("replaced", existing != nil))

	indexed, err := s.indexer.IndexPlan(ctx, plan)
	if err != nil {
		s.logger.Warn("plan stored without embedding",
			zap.String("plan_id", plan.ID.String()),
			zap.Error(err))
		return &IngestResult{Plan: plan, Indexed: false, IndexError: err.Error()}, nil
	}

	return &IngestResult{Plan: indexed, Indexed: true}, nil
}

// Reindex re-embeds a single plan
func (s *Service) Reindex(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.indexer.IndexPlan(ctx, plan)
}

// ReindexMissing indexes every plan that has no embedding yet
func (s *Service) ReindexMissing(ctx context.Context) (*indexing.Report, error) {
	return s.indexer.ReindexMissing(ctx)
}
