// Package retrieval ranks stored plans against a free-text query.
package retrieval

import (
	"context"
	"runtime"
	"sort"

	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"github.com/upb/billbuddy/services"
	"github.com/upb/billbuddy/services/providers"
	"github.com/upb/billbuddy/services/similarity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelThreshold is the candidate count at which scoring fans out
const DefaultParallelThreshold = 256

// Config holds configuration for the Retriever
type Config struct {
	// ParallelThreshold is the number of candidates at or above which scoring
	// is split across goroutines. Zero means DefaultParallelThreshold.
	ParallelThreshold int

	// Workers caps the number of scoring goroutines. Zero means GOMAXPROCS.
	Workers int
}

// Retriever embeds a query and ranks every indexed plan by cosine similarity
type Retriever struct {
	plans    repositories.PlanRepository
	embedder providers.EmbeddingProvider
	logger   *zap.Logger
	config   Config
}

// NewRetriever creates a new Retriever
func NewRetriever(plans repositories.PlanRepository, embedder providers.EmbeddingProvider, logger *zap.Logger, config Config) *Retriever {
	if config.ParallelThreshold <= 0 {
		config.ParallelThreshold = DefaultParallelThreshold
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Retriever{
		plans:    plans,
		embedder: embedder,
		logger:   logger,
		config:   config,
	}
}

// candidate is a scored plan plus its position in store order
type candidate struct {
	plan  *models.Plan
	score float64
	ok    bool
}

// Retrieve returns at most k plans sorted by descending similarity to query.
// Equal scores keep store order. Plans without an embedding, or whose
// embedding has a different dimensionality than the query vector, are skipped.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredPlan, error) {
	if k <= 0 {
		return nil, services.InvalidArgument("k must be at least 1").WithDetail("k", k)
	}

	ctx, span := otel.Tracer("billbuddy/retrieval").Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.k", k))

	plans, err := r.plans.GetAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store read failed")
		return nil, services.StoreFailure("failed to list plans", err)
	}

	indexed := 0
	for i := range plans {
		if plans[i].IsIndexed() {
			indexed++
		}
	}
	span.SetAttributes(attribute.Int("retrieval.indexed", indexed))
	if indexed == 0 {
		r.logger.Debug("no indexed plans, returning empty result")
		return []models.ScoredPlan{}, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err == nil && len(queryVec) == 0 {
		err = services.InvalidArgument("query embedding is empty")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return nil, services.EmbeddingUnavailable(err)
	}

	candidates, err := r.score(ctx, queryVec, plans)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring cancelled")
		return nil, err
	}

	ranked := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ok {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}

	results := make([]models.ScoredPlan, len(ranked))
	for i, c := range ranked {
		results[i] = models.ScoredPlan{Plan: *c.plan, Score: c.score}
	}

	span.SetAttributes(attribute.Int("retrieval.returned", len(results)))
	return results, nil
}

// score computes the similarity of every plan to queryVec. The result has one
// entry per plan, in store order.
func (r *Retriever) score(ctx context.Context, queryVec []float64, plans []models.Plan) ([]candidate, error) {
	out := make([]candidate, len(plans))

	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p := &plans[i]
			if !p.IsIndexed() {
				continue
			}
			s, err := similarity.Cosine(queryVec, p.Embedding)
			if err != nil {
				r.logger.Error("skipping plan with mismatched embedding",
					zap.String("plan_id", p.ID.String()),
					zap.Int("plan_dimensions", p.Embedding.Dim()),
					zap.Int("query_dimensions", len(queryVec)),
					zap.Error(err))
				continue
			}
			out[i] = candidate{plan: p, score: s, ok: true}
		}
	}

	if len(plans) < r.config.ParallelThreshold || r.config.Workers == 1 {
		scoreRange(0, len(plans))
		return out, ctx.Err()
	}

	chunk := (len(plans) + r.config.Workers - 1) / r.config.Workers
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(plans); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(plans))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scoreRange(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}
