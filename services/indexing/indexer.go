// Package indexing turns plan records into searchable embeddings.
package indexing

import (
	"context"
	"fmt"

	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"github.com/upb/billbuddy/services"
	"github.com/upb/billbuddy/services/providers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// SearchableText builds the canonical text embedded for a plan. Field order and
// separators are fixed; the same plan always yields the same string.
func SearchableText(p *models.Plan) string {
	return fmt.Sprintf("Provider: %s. Plan: %s. Type: %s. %s. %s Features: %s. Best for: %s",
		p.Provider,
		p.Name,
		p.Category,
		p.PriceLabel(),
		p.Description,
		p.Features,
		p.BestFor,
	)
}

// Report summarizes a bulk indexing run
type Report struct {
	Indexed int      `json:"indexed"`
	Skipped int      `json:"skipped"`
	Failed  []string `json:"failed,omitempty"`
}

// Indexer embeds plans and writes the vectors back to the plan store
type Indexer struct {
	plans    repositories.PlanRepository
	embedder providers.EmbeddingProvider
	logger   *zap.Logger
}

// NewIndexer creates a new Indexer
func NewIndexer(plans repositories.PlanRepository, embedder providers.EmbeddingProvider, logger *zap.Logger) *Indexer {
	return &Indexer{
		plans:    plans,
		embedder: embedder,
		logger:   logger,
	}
}

// IndexPlan embeds the plan's searchable text and saves the plan with its new
// embedding. Re-indexing overwrites the previous vector; the record is never
// duplicated because Save upserts by id.
//
// On embedding failure the stored record is left untouched and the error is
// services.ErrEmbeddingUnavailable, so the caller can retry later.
func (ix *Indexer) IndexPlan(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	ctx, span := otel.Tracer("billbuddy/indexing").Start(ctx, "indexing.IndexPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", plan.ID.String()))

	text := SearchableText(plan)

	vec, err := ix.embedder.Embed(ctx, text)
	if err == nil && len(vec) == 0 {
		err = fmt.Errorf("provider %s returned an empty vector", ix.embedder.Name())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		ix.logger.Warn("failed to embed plan",
			zap.String("plan_id", plan.ID.String()),
			zap.String("provider", plan.Provider),
			zap.String("name", plan.Name),
			zap.Error(err))
		return nil, services.EmbeddingUnavailable(err).WithDetail("planId", plan.ID.String())
	}

	indexed := plan.Clone()
	indexed.SetEmbedding(vec)

	if err := ix.plans.Save(ctx, indexed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, services.StoreFailure("failed to save indexed plan", err).WithDetail("planId", plan.ID.String())
	}

	ix.logger.Info("plan indexed",
		zap.String("plan_id", indexed.ID.String()),
		zap.String("provider", indexed.Provider),
		zap.String("name", indexed.Name),
		zap.Int("dimensions", indexed.Embedding.Dim()))

	return indexed, nil
}

// ReindexMissing indexes every stored plan without an embedding. Individual
// failures are logged and reported; only a store read failure aborts the run.
func (ix *Indexer) ReindexMissing(ctx context.Context) (*Report, error) {
	plans, err := ix.plans.GetAll(ctx)
	if err != nil {
		return nil, services.StoreFailure("failed to list plans", err)
	}

	report := &Report{}
	for i := range plans {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		plan := &plans[i]
		if plan.IsIndexed() {
			report.Skipped++
			continue
		}

		if _, err := ix.IndexPlan(ctx, plan); err != nil {
			report.Failed = append(report.Failed, plan.ID.String())
			continue
		}
		report.Indexed++
	}

	ix.logger.Info("reindex completed",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)))

	return report, nil
}
