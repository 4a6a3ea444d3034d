// Package file stores the query log as newline-delimited JSON.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"go.uber.org/zap"
)

// DefaultQueryLogPath is where the query log is written when no path is configured
const DefaultQueryLogPath = "billbuddy-queries.log"

// QueryLogRepository appends entries to a JSONL file
type QueryLogRepository struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	path   string
	logger *zap.Logger
}

var _ repositories.QueryLogRepository = (*QueryLogRepository)(nil)

// NewQueryLogRepository opens (or creates) the log file in append mode
func NewQueryLogRepository(path string, logger *zap.Logger) (*QueryLogRepository, error) {
	if path == "" {
		path = DefaultQueryLogPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create query log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open query log %s: %w", path, err)
	}

	logger.Info("query log file opened", zap.String("path", path))

	return &QueryLogRepository{
		file:   f,
		enc:    json.NewEncoder(f),
		path:   path,
		logger: logger,
	}, nil
}

// Insert writes one entry as a single line
func (r *QueryLogRepository) Insert(ctx context.Context, entry *models.QueryLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("query log %s is closed", r.path)
	}
	if err := r.enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to append query log entry: %w", err)
	}
	return nil
}

// Path returns the file being written
func (r *QueryLogRepository) Path() string {
	return r.path
}

// Close flushes and closes the file. Further inserts fail.
func (r *QueryLogRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Sync()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file = nil
	return err
}
