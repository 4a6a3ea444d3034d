package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/billbuddy/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Plans table; seq preserves first-save order for stable ranking ties
		CREATE TABLE IF NOT EXISTS plans (
			seq BIGSERIAL UNIQUE,
			id UUID PRIMARY KEY,
			category VARCHAR(50) NOT NULL,
			provider VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			monthly_price DOUBLE PRECISION CHECK (monthly_price >= 0),
			data_limit VARCHAR(100),
			speed VARCHAR(100),
			contract_length VARCHAR(100) NOT NULL DEFAULT '',
			features TEXT NOT NULL DEFAULT '',
			limitations TEXT NOT NULL DEFAULT '',
			best_for TEXT NOT NULL DEFAULT '',
			embedding TEXT,
			indexed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Query log table (append-only)
		CREATE TABLE IF NOT EXISTS query_logs (
			id UUID PRIMARY KEY,
			kind VARCHAR(20) NOT NULL,
			session_id VARCHAR(128) NOT NULL,
			query TEXT,
			response JSONB,
			latency_ms BIGINT,
			error_message TEXT,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_plans_category ON plans(category);
		CREATE INDEX IF NOT EXISTS idx_plans_monthly_price ON plans(monthly_price);

		CREATE INDEX IF NOT EXISTS idx_query_logs_session_id ON query_logs(session_id);
		CREATE INDEX IF NOT EXISTS idx_query_logs_timestamp ON query_logs(timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
