// Package querylog records one entry per query, response and error to an
// append-only log without slowing the query path down.
package querylog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"go.uber.org/zap"
)

// Sink receives query lifecycle events. Implementations must not block the caller
// for long and never fail the query they observe.
type Sink interface {
	RecordQuery(ctx context.Context, sessionID, query string)
	RecordResponse(ctx context.Context, sessionID string, resp *models.QueryResponse)
	RecordError(ctx context.Context, sessionID string, err error)
}

// NopSink discards every event
type NopSink struct{}

func (NopSink) RecordQuery(context.Context, string, string)                  {}
func (NopSink) RecordResponse(context.Context, string, *models.QueryResponse) {}
func (NopSink) RecordError(context.Context, string, error)                   {}

// Config holds configuration for the Service
type Config struct {
	BufferSize   int           // Size of the entry buffer channel
	WorkerCount  int           // Number of concurrent writers
	WriteTimeout time.Duration // Deadline for a single repository insert
	RedactPII    bool          // Mask emails, phone and card numbers in logged text
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
		RedactPII:    true,
	}
}

// Service is a Sink that writes entries to a repository from background workers
type Service struct {
	repo    repositories.QueryLogRepository
	logger  *zap.Logger
	config  Config
	entries chan *models.QueryLogEntry
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	dropped atomic.Int64
}

// NewService creates a new query log Service. Call Start before recording.
func NewService(repo repositories.QueryLogRepository, logger *zap.Logger, config Config) *Service {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Service{
		repo:    repo,
		logger:  logger,
		config:  config,
		entries: make(chan *models.QueryLogEntry, config.BufferSize),
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("query log service already started")
	}

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started query log service",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.Int("buffer_size", s.config.BufferSize))

	return nil
}

// Stop stops accepting entries and waits for queued ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("query log service not running")
	}
	s.stopped = true
	pending := len(s.entries)
	close(s.entries)
	s.mu.Unlock()

	s.logger.Info("stopping query log service", zap.Int("pending_entries", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		s.logger.Info("query log service stopped gracefully")
		return nil
	case <-timer.C:
		return fmt.Errorf("query log service stop timeout after %v", timeout)
	}
}

// RecordQuery logs an incoming question
func (s *Service) RecordQuery(ctx context.Context, sessionID, query string) {
	entry := models.NewQueryLogEntry(models.QueryLogKindQuery, sessionID)
	entry.Query = s.redact(query)
	s.enqueue(entry)
}

// RecordResponse logs a successful answer with its latency
func (s *Service) RecordResponse(ctx context.Context, sessionID string, resp *models.QueryResponse) {
	entry := models.NewQueryLogEntry(models.QueryLogKindResponse, sessionID)
	if resp != nil {
		latency := resp.ProcessingTimeMs
		entry.LatencyMs = &latency
		raw, err := json.Marshal(resp)
		if err != nil {
			s.logger.Warn("failed to encode response for query log",
				zap.String("session_id", sessionID),
				zap.Error(err))
		} else {
			entry.Response = raw
		}
	}
	s.enqueue(entry)
}

// RecordError logs a failed query
func (s *Service) RecordError(ctx context.Context, sessionID string, err error) {
	entry := models.NewQueryLogEntry(models.QueryLogKindError, sessionID)
	if err != nil {
		entry.Error = s.redact(err.Error())
	}
	s.enqueue(entry)
}

// enqueue hands the entry to a worker, dropping it when the buffer is full
func (s *Service) enqueue(entry *models.QueryLogEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		s.logger.Debug("query log service not running, dropping entry",
			zap.String("kind", string(entry.Kind)),
			zap.String("session_id", entry.SessionID))
		return
	}

	select {
	case s.entries <- entry:
	default:
		s.logger.Warn("query log buffer full, dropping entry",
			zap.String("kind", string(entry.Kind)),
			zap.String("session_id", entry.SessionID))
		s.dropped.Add(1)
	}
}

func (s *Service) redact(text string) string {
	if !s.config.RedactPII {
		return text
	}
	return RedactPII(text)
}

// worker writes entries until the channel is closed
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("query log worker started", zap.Int("worker_id", id))

	for entry := range s.entries {
		if err := s.write(entry); err != nil {
			s.logger.Error("failed to write query log entry",
				zap.Int("worker_id", id),
				zap.String("kind", string(entry.Kind)),
				zap.String("session_id", entry.SessionID),
				zap.Error(err))
		}
	}

	s.logger.Debug("query log worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(entry *models.QueryLogEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert query log entry: %w", err)
	}
	return nil
}

// Stats represents query log service statistics
type Stats struct {
	BufferSize     int
	PendingEntries int
	WorkerCount    int
	Dropped        int64
	Started        bool
}

// GetStats returns statistics about the service
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.config.BufferSize,
		PendingEntries: len(s.entries),
		WorkerCount:    s.config.WorkerCount,
		Dropped:        s.dropped.Load(),
		Started:        s.started && !s.stopped,
	}
}
