package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Query log backends
const (
	QueryLogBackendFile     = "file"
	QueryLogBackendPostgres = "postgres"
	QueryLogBackendNone     = "none"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: nil keeps plans in memory
	Providers     ProvidersConfig
	RAG           RAGConfig
	QueryLog      QueryLogConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProvidersConfig holds model provider configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	EmbeddingModel    string
	ChatModel         string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// RAGConfig holds retrieval and query pipeline settings
type RAGConfig struct {
	DefaultResults    int
	MaxResults        int
	QueryTimeout      time.Duration
	ParallelThreshold int
	MaxQueryLength    int
	SeedFile          string // Empty uses the built-in catalog
	SeedOnStartup     bool
}

// QueryLogConfig holds settings for the query/response/error log
type QueryLogConfig struct {
	Backend     string // file, postgres or none
	FilePath    string
	BufferSize  int
	WorkerCount int
	RedactPII   bool
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	TracingEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: loadDatabaseConfig(),
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:            getEnv("OPENAI_API_KEY", ""),
				BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				EmbeddingModel:    getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
				ChatModel:         getEnv("OPENAI_CHAT_MODEL", "gpt-4"),
				Temperature:       getEnvAsFloat("OPENAI_TEMPERATURE", 0.7),
				MaxTokens:         getEnvAsInt("OPENAI_MAX_TOKENS", 800),
				Timeout:           getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries:        getEnvAsInt("OPENAI_MAX_RETRIES", 3),
				RequestsPerSecond: getEnvAsFloat("OPENAI_REQUESTS_PER_SECOND", 5),
			},
		},
		RAG: RAGConfig{
			DefaultResults:    getEnvAsInt("RAG_DEFAULT_RESULTS", 5),
			MaxResults:        getEnvAsInt("RAG_MAX_RESULTS", 50),
			QueryTimeout:      getEnvAsDuration("RAG_QUERY_TIMEOUT", 60*time.Second),
			ParallelThreshold: getEnvAsInt("RAG_PARALLEL_THRESHOLD", 256),
			MaxQueryLength:    getEnvAsInt("RAG_MAX_QUERY_LENGTH", 2000),
			SeedFile:          getEnv("SEED_FILE", ""),
			SeedOnStartup:     getEnvAsBool("SEED_ON_STARTUP", true),
		},
		QueryLog: QueryLogConfig{
			Backend:     strings.ToLower(getEnv("QUERY_LOG_BACKEND", QueryLogBackendFile)),
			FilePath:    getEnv("QUERY_LOG_FILE", "billbuddy-queries.log"),
			BufferSize:  getEnvAsInt("QUERY_LOG_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("QUERY_LOG_WORKERS", 2),
			RedactPII:   getEnvAsBool("QUERY_LOG_REDACT_PII", true),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.IsProduction() && c.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required in production")
	}

	if c.RAG.DefaultResults < 1 {
		return fmt.Errorf("default result count must be at least 1")
	}
	if c.RAG.DefaultResults > c.RAG.MaxResults {
		return fmt.Errorf("default result count %d exceeds max result count %d", c.RAG.DefaultResults, c.RAG.MaxResults)
	}
	if c.RAG.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}

	switch c.QueryLog.Backend {
	case QueryLogBackendFile, QueryLogBackendNone:
	case QueryLogBackendPostgres:
		if c.Database == nil {
			return fmt.Errorf("postgres query log backend requires a database")
		}
	default:
		return fmt.Errorf("unknown query log backend %q", c.QueryLog.Backend)
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set.
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	if getEnv("DB_HOST", "") == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "billbuddy"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "billbuddy"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
