package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/billbuddy/config"
	"github.com/upb/billbuddy/models"
)

const completion = `RECOMMENDATION: Optus Internet Everyday Plus
EXPLANATION: Cheapest NBN plan in the catalog.
MONTHLY COST: $75.00 per month
TRADEOFFS:
- 500GB data cap
- 12 month contract`

// fakeProvider answers embeddings with keyword counts and every chat
// completion with the same reply
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/embeddings":
			var req struct {
				Input []string `json:"input"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			text := strings.ToLower(strings.Join(req.Input, " "))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"embedding": []float64{
					float64(strings.Count(text, "nbn")),
					float64(strings.Count(text, "affordable")),
					float64(strings.Count(text, "solar")),
				}}},
			})
		case "/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{{
					"message": map[string]string{"role": "assistant", "content": completion},
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func staticConfig(t *testing.T) func(context.Context) (*config.Config, error) {
	t.Helper()
	provider := fakeProvider(t)
	return func(context.Context) (*config.Config, error) {
		return &config.Config{
			Environment: "test",
			Server: config.ServerConfig{
				Host:            "127.0.0.1",
				Port:            0,
				ReadTimeout:     time.Second,
				WriteTimeout:    time.Second,
				ShutdownTimeout: time.Second,
			},
			Providers: config.ProvidersConfig{
				OpenAI: config.OpenAIConfig{
					APIKey:  "sk-cli-test",
					BaseURL: provider.URL,
					Timeout: 5 * time.Second,
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
			QueryLog:      config.QueryLogConfig{Backend: config.QueryLogBackendNone},
			Observability: config.ObservabilityConfig{LogLevel: "error", LogFormat: "json"},
		}, nil
	}
}

func execute(t *testing.T, ctx context.Context, load func(context.Context) (*config.Config, error), args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestAskCommand(t *testing.T) {
	out, err := execute(t, context.Background(), staticConfig(t), "ask", "-k", "2", "--session", "cli", "affordable", "NBN")
	require.NoError(t, err)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	assert.Equal(t, "Optus Internet Everyday Plus", resp.Recommendation)
	require.NotNil(t, resp.EstimatedMonthlyCost)
	assert.Equal(t, 75.0, *resp.EstimatedMonthlyCost)
	assert.Equal(t, []string{"500GB data cap", "12 month contract"}, resp.Tradeoffs)
	require.Len(t, resp.Citations, 2)
	assert.Equal(t, "Optus", resp.Citations[0].Provider)
	assert.Equal(t, "cli", resp.SessionID)
}

func TestAskCommand_RequiresQuestion(t *testing.T) {
	_, err := execute(t, context.Background(), staticConfig(t), "ask")
	assert.Error(t, err)
}

func TestAskCommand_InvalidResultCount(t *testing.T) {
	_, err := execute(t, context.Background(), staticConfig(t), "ask", "-k", "0", "nbn")
	assert.Error(t, err)
}

func TestIndexCommand(t *testing.T) {
	out, err := execute(t, context.Background(), staticConfig(t), "index")
	require.NoError(t, err)

	assert.Contains(t, out, "seeded: 4 saved, 0 unchanged, 4 indexed, 0 failed")
	assert.Contains(t, out, "reindexed: 0 indexed, 4 already indexed")
}

func TestServeCommand_ShutsDownOnCancel(t *testing.T) {
	load := staticConfig(t)
	noSeed := func(ctx context.Context) (*config.Config, error) {
		cfg, err := load(ctx)
		if err == nil {
			cfg.RAG.SeedOnStartup = false
		}
		return cfg, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, noSeed, "serve")
	assert.NoError(t, err)
}

func TestConfigLoadFailure(t *testing.T) {
	failing := func(context.Context) (*config.Config, error) {
		return nil, assert.AnError
	}

	_, err := execute(t, context.Background(), failing, "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestVerboseFlag(t *testing.T) {
	var seen *config.Config
	load := staticConfig(t)
	capture := func(ctx context.Context) (*config.Config, error) {
		cfg, err := load(ctx)
		seen = cfg
		return cfg, err
	}

	_, err := execute(t, context.Background(), capture, "-v", "index")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "debug", seen.Observability.LogLevel)
}
