package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/billbuddy/models"
)

// ErrNotFound is returned by GetByID when no record has the given id
var ErrNotFound = errors.New("record not found")

// PlanRepository handles plan record storage.
//
// Implementations must let GetAll run concurrently with Save without handing a
// reader a half-written plan.
type PlanRepository interface {
	// GetAll returns every plan in store order (the order plans were first saved).
	// Returned values are copies; the Embedding slices are shared and must not be
	// modified in place.
	GetAll(ctx context.Context) ([]models.Plan, error)

	// GetByID retrieves a plan by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)

	// Save inserts the plan or replaces the stored plan with the same ID.
	// A replaced plan keeps its original position in store order.
	Save(ctx context.Context, plan *models.Plan) error

	// Count returns the number of stored plans
	Count(ctx context.Context) (int, error)
}

// QueryLogRepository is the append-only sink for query log entries
type QueryLogRepository interface {
	// Insert appends an entry
	Insert(ctx context.Context, entry *models.QueryLogEntry) error
}

// Repositories holds all repository instances
type Repositories struct {
	Plans     PlanRepository
	QueryLogs QueryLogRepository
}
