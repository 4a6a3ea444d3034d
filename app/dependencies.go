package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/billbuddy/config"
	"github.com/upb/billbuddy/repositories"
	"github.com/upb/billbuddy/repositories/file"
	"github.com/upb/billbuddy/repositories/memory"
	"github.com/upb/billbuddy/repositories/postgres"
	"github.com/upb/billbuddy/services/catalog"
	"github.com/upb/billbuddy/services/indexing"
	"github.com/upb/billbuddy/services/prompt"
	"github.com/upb/billbuddy/services/providers"
	"github.com/upb/billbuddy/services/providers/openai"
	"github.com/upb/billbuddy/services/query"
	"github.com/upb/billbuddy/services/querylog"
	"github.com/upb/billbuddy/services/retrieval"
	"github.com/upb/billbuddy/services/seeding"
	"go.uber.org/zap"
)

// ProviderName is the registry key of the embedding and completion provider
const ProviderName = "openai"

// defaultStopTimeout bounds the query log flush when Close has no deadline
const defaultStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB // nil when plans are kept in memory

	// Repository Factory, nil without a database
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Plans     repositories.PlanRepository
	QueryLogs repositories.QueryLogRepository // nil when the query log is off

	// Providers
	ProviderRegistry *providers.Registry
	Embedder         providers.EmbeddingProvider
	Completer        providers.CompletionProvider

	// Pipeline
	Indexer   *indexing.Indexer
	Retriever *retrieval.Retriever
	Prompts   *prompt.Builder
	QueryLog  querylog.Sink
	Query     *query.Service
	Catalog   *catalog.Service
	Seeder    *seeding.Seeder

	queryLogService *querylog.Service
	queryLogFile    *file.QueryLogRepository
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStore(ctx); err != nil {
		deps.release(ctx)
		return nil, fmt.Errorf("failed to initialize plan store: %w", err)
	}

	if err := deps.initProviders(); err != nil {
		deps.release(ctx)
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initQueryLog(); err != nil {
		deps.release(ctx)
		return nil, fmt.Errorf("failed to initialize query log: %w", err)
	}

	deps.initServices()

	logger.Info("all dependencies initialized successfully",
		zap.Bool("postgres", deps.DB != nil),
		zap.String("query_log", cfg.QueryLog.Backend))
	return deps, nil
}

// initStore opens PostgreSQL when configured, otherwise an in-memory store
func (d *Dependencies) initStore(ctx context.Context) error {
	if d.Config.Database == nil {
		d.Plans = memory.NewPlanRepository(d.Logger)
		d.Logger.Info("using in-memory plan store")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(*d.Config.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	repos := factory.NewRepositories()
	d.Plans = repos.Plans
	if d.Config.QueryLog.Backend == config.QueryLogBackendPostgres {
		d.QueryLogs = repos.QueryLogs
	}

	d.Logger.Info("database connection established",
		zap.String("connection", d.Config.Database.LogString()))
	return nil
}

// initProviders builds the provider registry from configuration
func (d *Dependencies) initProviders() error {
	oa := d.Config.Providers.OpenAI

	builder := providers.NewRegistryBuilder().
		WithProviderBuilder(ProviderName, func(pc providers.ProviderConfig) (providers.Provider, error) {
			return openai.NewOpenAIAdapter(pc, d.Logger), nil
		})

	registry, err := builder.Build(map[string]providers.ProviderConfig{
		ProviderName: providerConfig(oa),
	})
	if err != nil {
		return err
	}

	if d.Embedder, err = registry.Embedding(ProviderName); err != nil {
		return err
	}
	if d.Completer, err = registry.Completion(ProviderName); err != nil {
		return err
	}
	d.ProviderRegistry = registry

	if oa.APIKey == "" {
		d.Logger.Warn("OpenAI API key not configured, embedding and completion calls will fail")
	} else {
		d.Logger.Info("registered OpenAI provider",
			zap.String("api_key", maskKey(oa.APIKey)),
			zap.String("embedding_model", oa.EmbeddingModel),
			zap.String("chat_model", oa.ChatModel))
	}
	return nil
}

// initQueryLog opens the configured query log backend and starts its workers
func (d *Dependencies) initQueryLog() error {
	qc := d.Config.QueryLog

	switch qc.Backend {
	case config.QueryLogBackendNone:
		d.QueryLog = querylog.NopSink{}
		d.Logger.Info("query log disabled")
		return nil
	case config.QueryLogBackendFile:
		repo, err := file.NewQueryLogRepository(qc.FilePath, d.Logger)
		if err != nil {
			return err
		}
		d.queryLogFile = repo
		d.QueryLogs = repo
	case config.QueryLogBackendPostgres:
		if d.QueryLogs == nil {
			return errors.New("postgres query log backend requires a database")
		}
	default:
		return fmt.Errorf("unknown query log backend %q", qc.Backend)
	}

	svc := querylog.NewService(d.QueryLogs, d.Logger, querylog.Config{
		BufferSize:  qc.BufferSize,
		WorkerCount: qc.WorkerCount,
		RedactPII:   qc.RedactPII,
	})
	if err := svc.Start(); err != nil {
		return err
	}
	d.queryLogService = svc
	d.QueryLog = svc
	return nil
}

// initServices wires the pipeline over the store and providers
func (d *Dependencies) initServices() {
	rag := d.Config.RAG

	d.Indexer = indexing.NewIndexer(d.Plans, d.Embedder, d.Logger)
	d.Retriever = retrieval.NewRetriever(d.Plans, d.Embedder, d.Logger, retrieval.Config{
		ParallelThreshold: rag.ParallelThreshold,
	})
	d.Prompts = prompt.NewBuilder(prompt.Config{MaxQueryLength: rag.MaxQueryLength})
	d.Query = query.NewService(d.Retriever, d.Prompts, d.Completer, d.QueryLog, d.Logger, query.Config{
		DefaultResults: rag.DefaultResults,
		MaxResults:     rag.MaxResults,
		Timeout:        rag.QueryTimeout,
	})
	d.Catalog = catalog.NewService(d.Plans, d.Indexer, d.Logger)
	d.Seeder = seeding.NewSeeder(d.Plans, d.Indexer, d.Logger)
}

// SeedCatalog loads the configured seed catalog (the built-in one when no
// seed file is set) and seeds the plan store with it
func (d *Dependencies) SeedCatalog(ctx context.Context) (*seeding.Result, error) {
	c, err := seeding.Load(d.Config.RAG.SeedFile)
	if err != nil {
		return nil, err
	}
	return d.Seeder.Seed(ctx, c)
}

// ProviderNames lists the registered providers
func (d *Dependencies) ProviderNames() []string {
	if d.ProviderRegistry == nil {
		return nil
	}
	return d.ProviderRegistry.ListProviders()
}

// Close gracefully shuts down all dependencies. Pending query log entries
// are flushed before the backing file or database is closed.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	errs := d.release(ctx)

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}

func (d *Dependencies) release(ctx context.Context) []error {
	var errs []error

	if d.queryLogService != nil {
		timeout := defaultStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.queryLogService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop query log: %w", err))
		}
		d.queryLogService = nil
	}

	if d.queryLogFile != nil {
		if err := d.queryLogFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close query log file: %w", err))
		}
		d.queryLogFile = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
		d.DB = nil
	}

	return errs
}

func providerConfig(oa config.OpenAIConfig) providers.ProviderConfig {
	pc := providers.DefaultProviderConfig()
	pc.APIKey = oa.APIKey
	pc.BaseURL = oa.BaseURL
	if oa.EmbeddingModel != "" {
		pc.EmbeddingModel = oa.EmbeddingModel
	}
	if oa.ChatModel != "" {
		pc.ChatModel = oa.ChatModel
	}
	pc.Temperature = oa.Temperature
	if oa.MaxTokens > 0 {
		pc.MaxTokens = oa.MaxTokens
	}
	if oa.Timeout > 0 {
		pc.Timeout = oa.Timeout
	}
	pc.MaxRetries = oa.MaxRetries
	pc.RequestsPerSecond = oa.RequestsPerSecond
	return pc
}

// maskKey keeps only the last four characters of an API key
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
