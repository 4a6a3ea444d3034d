package app

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/billbuddy/config"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/services/querylog"
	"go.uber.org/zap"
)

var keywords = []string{"mobile", "5g", "internet", "nbn", "energy", "electricity", "solar", "unlimited", "data"}

const cannedReply = `RECOMMENDATION: Vodafone Mobile Max
EXPLANATION: It is the only plan with 5G access.
MONTHLY COST: $55 per month
TRADEOFFS:
- Data is capped at 80GB`

// fakeOpenAI serves /embeddings with keyword-count vectors and
// /chat/completions with a canned reply
func fakeOpenAI(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var embeddings atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/embeddings":
			embeddings.Add(1)
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) == 0 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			lower := strings.ToLower(req.Input[0])
			vec := make([]float64, len(keywords))
			for i, kw := range keywords {
				vec[i] = float64(strings.Count(lower, kw))
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"index": 0, "embedding": vec}},
			})
		case "/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"model": "gpt-4",
				"choices": []map[string]interface{}{{
					"index":   0,
					"message": map[string]string{"role": "assistant", "content": cannedReply},
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &embeddings
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Providers: config.ProvidersConfig{
			OpenAI: config.OpenAIConfig{
				APIKey:         "sk-test-1234",
				BaseURL:        baseURL,
				EmbeddingModel: "text-embedding-ada-002",
				ChatModel:      "gpt-4",
				Temperature:    0.7,
				MaxTokens:      800,
				Timeout:        5 * time.Second,
				MaxRetries:     0,
			},
		},
		RAG: config.RAGConfig{
			DefaultResults:    5,
			MaxResults:        50,
			QueryTimeout:      10 * time.Second,
			ParallelThreshold: 256,
			MaxQueryLength:    2000,
			SeedOnStartup:     true,
		},
		QueryLog: config.QueryLogConfig{
			Backend:     config.QueryLogBackendNone,
			BufferSize:  10,
			WorkerCount: 1,
			RedactPII:   true,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func TestNewDependencies(t *testing.T) {
	t.Run("in-memory store without query log", func(t *testing.T) {
		ctx := context.Background()
		server, _ := fakeOpenAI(t)
		cfg := testConfig(t, server.URL)

		deps, err := NewDependencies(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.RepoFactory)
		assert.NotNil(t, deps.Plans)
		assert.Nil(t, deps.QueryLogs)
		assert.IsType(t, querylog.NopSink{}, deps.QueryLog)

		assert.NotNil(t, deps.Embedder)
		assert.NotNil(t, deps.Completer)
		assert.Equal(t, []string{"openai"}, deps.ProviderNames())

		assert.NotNil(t, deps.Indexer)
		assert.NotNil(t, deps.Retriever)
		assert.NotNil(t, deps.Prompts)
		assert.NotNil(t, deps.Query)
		assert.NotNil(t, deps.Catalog)
		assert.NotNil(t, deps.Seeder)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("file query log", func(t *testing.T) {
		ctx := context.Background()
		server, _ := fakeOpenAI(t)
		cfg := testConfig(t, server.URL)
		cfg.QueryLog.Backend = config.QueryLogBackendFile
		cfg.QueryLog.FilePath = filepath.Join(t.TempDir(), "logs", "queries.log")

		deps, err := NewDependencies(ctx, cfg, zap.NewNop())
		require.NoError(t, err)

		assert.NotNil(t, deps.QueryLogs)
		assert.FileExists(t, cfg.QueryLog.FilePath)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("unknown query log backend", func(t *testing.T) {
		server, _ := fakeOpenAI(t)
		cfg := testConfig(t, server.URL)
		cfg.QueryLog.Backend = "kafka"

		deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize query log")
	})

	t.Run("database connection failure", func(t *testing.T) {
		server, _ := fakeOpenAI(t)
		cfg := testConfig(t, server.URL)
		cfg.Database = &config.DatabaseConfig{
			Host:            "127.0.0.1",
			Port:            1,
			User:            "billbuddy",
			Database:        "billbuddy",
			SSLMode:         "disable",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Minute,
		}

		deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize plan store")
	})
}

func TestDependencies_SeedAndAnswer(t *testing.T) {
	ctx := context.Background()
	server, embeddings := fakeOpenAI(t)
	cfg := testConfig(t, server.URL)
	cfg.QueryLog.Backend = config.QueryLogBackendFile
	cfg.QueryLog.FilePath = filepath.Join(t.TempDir(), "queries.log")

	deps, err := NewDependencies(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	res, err := deps.SeedCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Saved)
	assert.Equal(t, 4, res.Indexed)
	assert.Equal(t, int64(4), embeddings.Load())

	one := 1
	resp, err := deps.Query.Answer(ctx, &models.QueryRequest{
		Query:      "mobile 5G",
		SessionID:  "app-test",
		MaxResults: &one,
	})
	require.NoError(t, err)

	assert.Equal(t, "Vodafone Mobile Max", resp.Recommendation)
	require.NotNil(t, resp.EstimatedMonthlyCost)
	assert.Equal(t, 55.0, *resp.EstimatedMonthlyCost)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "Vodafone", resp.Citations[0].Provider)
	assert.Equal(t, "app-test", resp.SessionID)

	// Close flushes the query log before the file is closed
	require.NoError(t, deps.Close(ctx))

	f, err := os.Open(cfg.QueryLog.FilePath)
	require.NoError(t, err)
	defer f.Close()

	kinds := map[string]int{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry models.QueryLogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		assert.Equal(t, "app-test", entry.SessionID)
		kinds[string(entry.Kind)]++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 1, kinds[string(models.QueryLogKindQuery)])
	assert.Equal(t, 1, kinds[string(models.QueryLogKindResponse)])
}

func TestDependencies_SeedCatalogMissingFile(t *testing.T) {
	server, _ := fakeOpenAI(t)
	cfg := testConfig(t, server.URL)
	cfg.RAG.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	deps, err := NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer deps.Close(context.Background())

	_, err = deps.SeedCatalog(context.Background())
	assert.Error(t, err)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****1234", maskKey("sk-test-1234"))
	assert.Equal(t, "****", maskKey("abc"))
}

func TestProviderConfig(t *testing.T) {
	pc := providerConfig(config.OpenAIConfig{
		APIKey:            "k",
		BaseURL:           "http://localhost",
		Temperature:       0.2,
		MaxRetries:        2,
		RequestsPerSecond: 3,
	})

	assert.Equal(t, "k", pc.APIKey)
	assert.Equal(t, "http://localhost", pc.BaseURL)
	assert.Equal(t, "text-embedding-ada-002", pc.EmbeddingModel)
	assert.Equal(t, "gpt-4", pc.ChatModel)
	assert.Equal(t, 800, pc.MaxTokens)
	assert.Equal(t, 0.2, pc.Temperature)
	assert.Equal(t, 2, pc.MaxRetries)
	assert.Equal(t, 3.0, pc.RequestsPerSecond)
	assert.Equal(t, time.Second, pc.RetryDelay)
}
