// Package memory provides an in-process plan store used when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"go.uber.org/zap"
)

// snapshot is an immutable view of the store. Writers build a new snapshot and
// swap it in; readers never lock.
type snapshot struct {
	plans []*models.Plan
	index map[uuid.UUID]int
}

// PlanRepository implements repositories.PlanRepository with copy-on-write snapshots
type PlanRepository struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
	logger  *zap.Logger
}

// NewPlanRepository creates an empty in-memory plan repository
func NewPlanRepository(logger *zap.Logger) *PlanRepository {
	r := &PlanRepository{logger: logger}
	r.current.Store(&snapshot{index: map[uuid.UUID]int{}})
	return r
}

// GetAll returns every plan in insertion order
func (r *PlanRepository) GetAll(ctx context.Context) ([]models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := r.current.Load()
	plans := make([]models.Plan, len(snap.plans))
	for i, p := range snap.plans {
		plans[i] = *p
	}
	return plans, nil
}

// GetByID retrieves a plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := r.current.Load()
	i, ok := snap.index[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, repositories.ErrNotFound)
	}
	return snap.plans[i].Clone(), nil
}

// Save inserts or replaces a plan. The stored value is a private copy.
func (r *PlanRepository) Save(ctx context.Context, plan *models.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan cannot be nil")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.current.Load()
	next := &snapshot{
		plans: make([]*models.Plan, len(old.plans), len(old.plans)+1),
		index: make(map[uuid.UUID]int, len(old.index)+1),
	}
	copy(next.plans, old.plans)
	for id, i := range old.index {
		next.index[id] = i
	}

	stored := plan.Clone()
	if i, ok := next.index[plan.ID]; ok {
		stored.CreatedAt = old.plans[i].CreatedAt
		next.plans[i] = stored
	} else {
		next.index[plan.ID] = len(next.plans)
		next.plans = append(next.plans, stored)
	}

	r.current.Store(next)

	r.logger.Debug("plan saved",
		zap.String("id", plan.ID.String()),
		zap.Bool("indexed", stored.IsIndexed()))
	return nil
}

// Count returns the number of stored plans
func (r *PlanRepository) Count(ctx context.Context) (int, error) {
	return len(r.current.Load().plans), nil
}
