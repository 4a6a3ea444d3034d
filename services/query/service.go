// Package query runs the question-answering pipeline: retrieve, prompt,
// complete, parse.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/services"
	"github.com/upb/billbuddy/services/parser"
	"github.com/upb/billbuddy/services/prompt"
	"github.com/upb/billbuddy/services/providers"
	"github.com/upb/billbuddy/services/querylog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("billbuddy/query")

// Retriever ranks stored plans against a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.ScoredPlan, error)
}

// Config holds configuration for the Service
type Config struct {
	DefaultResults int           // K when the request does not set maxResults
	MaxResults     int           // Upper bound on K
	Timeout        time.Duration // Deadline for the whole pipeline, provider calls included
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		DefaultResults: models.DefaultMaxResults,
		MaxResults:     50,
		Timeout:        60 * time.Second,
	}
}

// Service orchestrates the retrieval-augmented query pipeline
type Service struct {
	retriever Retriever
	builder   *prompt.Builder
	completer providers.CompletionProvider
	sink      querylog.Sink
	logger    *zap.Logger
	config    Config
}

// NewService creates a new query service. A nil sink disables the query log.
func NewService(
	retriever Retriever,
	builder *prompt.Builder,
	completer providers.CompletionProvider,
	sink querylog.Sink,
	logger *zap.Logger,
	config Config,
) *Service {
	defaults := DefaultConfig()
	if config.DefaultResults <= 0 {
		config.DefaultResults = defaults.DefaultResults
	}
	if config.MaxResults <= 0 {
		config.MaxResults = defaults.MaxResults
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if sink == nil {
		sink = querylog.NopSink{}
	}
	return &Service{
		retriever: retriever,
		builder:   builder,
		completer: completer,
		sink:      sink,
		logger:    logger,
		config:    config,
	}
}

// Answer runs the pipeline for one request. Provider and validation failures
// come back as a QueryFailed domain error carrying the session id; an answer
// the parser could only partly read is still a success with Degraded set.
func (s *Service) Answer(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "query.Answer", trace.WithAttributes(
		attribute.String("session_id", sessionID)))
	defer span.End()

	s.logger.Info("processing query",
		zap.String("session_id", sessionID),
		zap.Int("query_length", len(req.Query)))

	s.sink.RecordQuery(ctx, sessionID, req.Query)

	resp, err := s.run(ctx, sessionID, req, start)
	if err != nil {
		qerr := services.NewQueryFailed(sessionID, err)

		span.RecordError(err)
		span.SetStatus(codes.Error, qerr.Code)

		s.logger.Error("query failed",
			zap.String("session_id", sessionID),
			zap.String("error_type", string(qerr.Type)),
			zap.String("error_code", qerr.Code),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		s.sink.RecordError(ctx, sessionID, qerr)
		return nil, qerr
	}

	span.SetAttributes(
		attribute.Int("citations", len(resp.Citations)),
		attribute.Bool("degraded", resp.Degraded))

	s.logger.Info("query completed",
		zap.String("session_id", sessionID),
		zap.Int("citations", len(resp.Citations)),
		zap.Bool("degraded", resp.Degraded),
		zap.Int64("processing_time_ms", resp.ProcessingTimeMs))

	s.sink.RecordResponse(ctx, sessionID, resp)
	return resp, nil
}

func (s *Service) run(ctx context.Context, sessionID string, req *models.QueryRequest, start time.Time) (*models.QueryResponse, error) {
	// Step 1: validate input before touching any provider
	q, err := s.builder.ValidateQuery(req.Query)
	if err != nil {
		return nil, err
	}
	k := req.ResultCount(s.config.DefaultResults)
	if k < 1 || k > s.config.MaxResults {
		return nil, services.InvalidArgument(
			fmt.Sprintf("maxResults must be between 1 and %d, got %d", s.config.MaxResults, k))
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	// fail marks errors caused by the deadline so they surface as timeouts
	fail := func(err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}

	// Step 2: retrieve
	s.logger.Debug("step 1: retrieving plans", zap.String("session_id", sessionID), zap.Int("k", k))
	candidates, err := s.retriever.Retrieve(ctx, q, k)
	if err != nil {
		return nil, fail(err)
	}

	// Step 3: prompt
	s.logger.Debug("step 2: building prompt", zap.String("session_id", sessionID), zap.Int("candidates", len(candidates)))
	userPrompt := s.builder.Build(q, candidates)

	// Step 4: complete
	s.logger.Debug("step 3: invoking completion provider",
		zap.String("session_id", sessionID),
		zap.String("provider", s.completer.Name()))
	reply, err := s.complete(ctx, userPrompt)
	if err != nil {
		return nil, fail(services.CompletionUnavailable(err))
	}

	// Step 5: parse
	parsed := parser.Parse(reply)
	if parsed.Outcome == parser.OutcomeDegraded {
		s.logger.Warn("model reply only partly parsed",
			zap.String("session_id", sessionID),
			zap.Strings("missing", parsed.Missing),
			zap.Int("reply_length", len(reply)))
	}

	citations := make([]models.Citation, 0, len(candidates))
	for _, c := range candidates {
		citations = append(citations, models.NewCitation(c))
	}

	return &models.QueryResponse{
		Recommendation:       parsed.Recommendation,
		Explanation:          parsed.Explanation,
		EstimatedMonthlyCost: parsed.Cost,
		Tradeoffs:            parsed.Tradeoffs,
		Citations:            citations,
		SessionID:            sessionID,
		ProcessingTimeMs:     time.Since(start).Milliseconds(),
		Degraded:             parsed.Outcome == parser.OutcomeDegraded,
	}, nil
}

func (s *Service) complete(ctx context.Context, userPrompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "query.Complete", trace.WithAttributes(
		attribute.String("provider", s.completer.Name()),
		attribute.Int("prompt_length", len(userPrompt))))
	defer span.End()

	reply, err := s.completer.Complete(ctx, prompt.SystemPrompt, userPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	return reply, nil
}
