// Package seeding loads the plan catalog into the store at startup.
package seeding

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"github.com/upb/billbuddy/services/indexing"
	"github.com/upb/billbuddy/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultCatalog []byte

// Catalog is the on-disk seed format
type Catalog struct {
	Plans []models.CreatePlanRequest `yaml:"plans"`
}

// DefaultCatalog returns the built-in sample plans
func DefaultCatalog() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the built-in one when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. Unknown keys are rejected so typos in a seed
// file surface instead of silently dropping a field.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalog: %w", err)
	}
	return &c, nil
}

// Result summarizes a seeding run
type Result struct {
	Saved     int
	Indexed   int
	Unchanged int
	Failed    int
}

// Seeder saves and indexes catalog plans
type Seeder struct {
	plans   repositories.PlanRepository
	indexer *indexing.Indexer
	logger  *zap.Logger
}

// NewSeeder creates a new Seeder
func NewSeeder(plans repositories.PlanRepository, indexer *indexing.Indexer, logger *zap.Logger) *Seeder {
	return &Seeder{
		plans:   plans,
		indexer: indexer,
		logger:  logger,
	}
}

// Seed saves every catalog plan, then indexes it. Plan ids are derived from
// provider and name, so running Seed again updates rather than duplicates.
// A plan already stored with an embedding of identical text is left alone.
// Per-plan failures are logged and counted; seeding always runs to the end
// unless ctx is cancelled.
func (s *Seeder) Seed(ctx context.Context, catalog *Catalog) (*Result, error) {
	s.logger.Info("initializing sample plan data", zap.Int("plans", len(catalog.Plans)))

	res := &Result{}
	for i := range catalog.Plans {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		req := &catalog.Plans[i]
		if err := utils.ValidateStruct(req); err != nil {
			s.logger.Error("skipping invalid seed plan",
				zap.Int("index", i),
				zap.Any("fields", utils.GetValidationFields(err)),
				zap.Error(err))
			res.Failed++
			continue
		}
		plan, err := req.ToPlan()
		if err != nil {
			s.logger.Error("skipping invalid seed plan", zap.Int("index", i), zap.Error(err))
			res.Failed++
			continue
		}

		existing, err := s.plans.GetByID(ctx, plan.ID)
		switch {
		case err == nil:
			if existing.IsIndexed() && indexing.SearchableText(existing) == indexing.SearchableText(plan) {
				res.Unchanged++
				continue
			}
			plan.CreatedAt = existing.CreatedAt
		case !errors.Is(err, repositories.ErrNotFound):
			s.logger.Error("failed to look up seed plan", zap.String("plan_id", plan.ID.String()), zap.Error(err))
			res.Failed++
			continue
		}

		if err := s.plans.Save(ctx, plan); err != nil {
			s.logger.Error("failed to save seed plan", zap.String("plan_id", plan.ID.String()), zap.Error(err))
			res.Failed++
			continue
		}
		res.Saved++

		if _, err := s.indexer.IndexPlan(ctx, plan); err != nil {
			s.logger.Error("indexing skipped at startup, plan will be indexed on reindex",
				zap.String("plan_id", plan.ID.String()),
				zap.String("name", plan.Name),
				zap.Error(err))
			continue
		}
		res.Indexed++
	}

	s.logger.Info("sample data initialized",
		zap.Int("saved", res.Saved),
		zap.Int("indexed", res.Indexed),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("failed", res.Failed))

	return res, nil
}
