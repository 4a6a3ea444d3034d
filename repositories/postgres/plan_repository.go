package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"go.uber.org/zap"
)

const planColumns = `id, category, provider, name, description, monthly_price, data_limit, speed,
		       contract_length, features, limitations, best_for, embedding, indexed_at,
		       created_at, updated_at`

// PlanRepository implements the repositories.PlanRepository interface.
// Embeddings are stored as a JSON array in a TEXT column.
type PlanRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *DB, logger *zap.Logger) repositories.PlanRepository {
	return &PlanRepository{
		db:     db,
		logger: logger,
	}
}

// GetAll returns every plan ordered by first insertion
func (r *PlanRepository) GetAll(ctx context.Context) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		plan, err := r.scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, nil
}

// GetByID retrieves a plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	plan, err := r.scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", id, repositories.ErrNotFound)
		}
		return nil, err
	}
	return plan, nil
}

// Save inserts the plan or updates the row with the same ID. created_at and
// the row's position in store order are kept on update.
func (r *PlanRepository) Save(ctx context.Context, plan *models.Plan) error {
	query := `
		INSERT INTO plans (
			id, category, provider, name, description, monthly_price, data_limit, speed,
			contract_length, features, limitations, best_for, embedding, indexed_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			provider = EXCLUDED.provider,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			monthly_price = EXCLUDED.monthly_price,
			data_limit = EXCLUDED.data_limit,
			speed = EXCLUDED.speed,
			contract_length = EXCLUDED.contract_length,
			features = EXCLUDED.features,
			limitations = EXCLUDED.limitations,
			best_for = EXCLUDED.best_for,
			embedding = EXCLUDED.embedding,
			indexed_at = EXCLUDED.indexed_at,
			updated_at = EXCLUDED.updated_at
	`

	embedding, err := encodeEmbedding(plan.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding for plan %s: %w", plan.ID, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		plan.ID,
		string(plan.Category),
		plan.Provider,
		plan.Name,
		plan.Description,
		nullFloat(plan.MonthlyPrice),
		nullString(plan.DataLimit),
		nullString(plan.Speed),
		plan.ContractLength,
		plan.Features,
		plan.Limitations,
		plan.BestFor,
		embedding,
		nullTimePtr(plan.IndexedAt),
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	r.logger.Debug("plan saved",
		zap.String("id", plan.ID.String()),
		zap.Bool("indexed", plan.IsIndexed()))
	return nil
}

// Count returns the number of stored plans
func (r *PlanRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPlan reads one row. An embedding that fails to decode is logged and
// dropped, leaving the plan unindexed instead of failing the whole read.
func (r *PlanRepository) scanPlan(row rowScanner) (*models.Plan, error) {
	var (
		plan      models.Plan
		category  string
		price     sql.NullFloat64
		dataLimit sql.NullString
		speed     sql.NullString
		embedding sql.NullString
		indexedAt sql.NullTime
	)

	err := row.Scan(
		&plan.ID,
		&category,
		&plan.Provider,
		&plan.Name,
		&plan.Description,
		&price,
		&dataLimit,
		&speed,
		&plan.ContractLength,
		&plan.Features,
		&plan.Limitations,
		&plan.BestFor,
		&embedding,
		&indexedAt,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	plan.Category = models.Category(category)
	if price.Valid {
		v := price.Float64
		plan.MonthlyPrice = &v
	}
	if dataLimit.Valid {
		v := dataLimit.String
		plan.DataLimit = &v
	}
	if speed.Valid {
		v := speed.String
		plan.Speed = &v
	}

	if embedding.Valid && embedding.String != "" {
		vec, err := decodeEmbedding(embedding.String)
		if err != nil {
			r.logger.Error("skipping undecodable plan embedding",
				zap.String("plan_id", plan.ID.String()),
				zap.Error(err))
		} else {
			plan.Embedding = vec
			if indexedAt.Valid {
				t := indexedAt.Time
				plan.IndexedAt = &t
			}
		}
	}

	return &plan, nil
}

func encodeEmbedding(vec models.Embedding) (sql.NullString, error) {
	if len(vec) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal([]float64(vec))
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeEmbedding(raw string) (models.Embedding, error) {
	var vec []float64
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, fmt.Errorf("invalid embedding: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("invalid embedding: empty vector")
	}
	return models.Embedding(vec), nil
}
