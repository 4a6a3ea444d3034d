package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories/memory"
	"github.com/upb/billbuddy/services"
	"go.uber.org/zap"
)

// staticEmbedder returns the same query vector for every call
type staticEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (s *staticEmbedder) Name() string { return "static" }

func (s *staticEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	s.calls++
	return s.vec, s.err
}

func seedStore(t *testing.T, vectors ...models.Embedding) (*memory.PlanRepository, []*models.Plan) {
	t.Helper()
	store := memory.NewPlanRepository(zap.NewNop())
	plans := make([]*models.Plan, 0, len(vectors))
	for i, v := range vectors {
		p := models.NewPlan(models.CategoryMobile, "Provider", fmt.Sprintf("Plan %d", i))
		if v != nil {
			p.SetEmbedding(v)
		}
		require.NoError(t, store.Save(context.Background(), p))
		plans = append(plans, p)
	}
	return store, plans
}

func TestRetriever_InvalidK(t *testing.T) {
	store, _ := seedStore(t, models.Embedding{1, 0})
	embedder := &staticEmbedder{vec: []float64{1, 0}}
	r := NewRetriever(store, embedder, zap.NewNop(), Config{})

	for _, k := range []int{0, -1} {
		_, err := r.Retrieve(context.Background(), "query", k)
		require.Error(t, err)
		assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	}
	assert.Equal(t, 0, embedder.calls, "no provider call before argument validation")
}

func TestRetriever_EmptyStore(t *testing.T) {
	store := memory.NewPlanRepository(zap.NewNop())
	r := NewRetriever(store, &staticEmbedder{vec: []float64{1}}, zap.NewNop(), Config{})

	results, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetriever_OnlyUnindexedPlans(t *testing.T) {
	store, _ := seedStore(t, nil, nil)
	r := NewRetriever(store, &staticEmbedder{vec: []float64{1}}, zap.NewNop(), Config{})

	results, err := r.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_TopKSorted(t *testing.T) {
	store, plans := seedStore(t,
		models.Embedding{0, 1},
		models.Embedding{1, 0},
		models.Embedding{1, 1},
		models.Embedding{-1, 0},
	)
	r := NewRetriever(store, &staticEmbedder{vec: []float64{1, 0}}, zap.NewNop(), Config{})

	results, err := r.Retrieve(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	assert.Equal(t, plans[1].ID, results[0].Plan.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, plans[2].ID, results[1].Plan.ID)
	assert.Equal(t, plans[0].ID, results[2].Plan.ID)
}

func TestRetriever_KLargerThanStore(t *testing.T) {
	store, _ := seedStore(t, models.Embedding{1, 0}, models.Embedding{0, 1})
	r := NewRetriever(store, &staticEmbedder{vec: []float64{1, 0}}, zap.NewNop(), Config{})

	results, err := r.Retrieve(context.Background(), "query", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetriever_TiesKeepStoreOrder(t *testing.T) {
	store, plans := seedStore(t,
		models.Embedding{2, 0},
		models.Embedding{0, 1},
		models.Embedding{1, 0},
		models.Embedding{5, 0},
	)
	r := NewRetriever(store, &staticEmbedder{vec: []float64{1, 0}}, zap.NewNop(), Config{})

	for run := 0; run < 5; run++ {
		results, err := r.Retrieve(context.Background(), "query", 4)
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Equal(t, plans[0].ID, results[0].Plan.ID)
		assert.Equal(t, plans[2].ID, results[1].Plan.ID)
		assert.Equal(t, plans[3].ID, results[2].Plan.ID)
		assert.Equal(t, plans[1].ID, results[3].Plan.ID)
	}
}

func TestRetriever_SkipsMismatchedDimensions(t *testing.T) {
	store, plans := seedStore(t,
		models.Embedding{1, 0, 0},
		models.Embedding{1, 0},
		nil,
	)
	r := NewRetriever(store, &staticEmbedder{vec: []float64{1, 0}}, zap.NewNop(), Config{})

	results, err := r.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, plans[1].ID, results[0].Plan.ID)
}

func TestRetriever_EmbeddingUnavailable(t *testing.T) {
	store, _ := seedStore(t, models.Embedding{1, 0})
	r := NewRetriever(store, &staticEmbedder{err: errors.New("timeout")}, zap.NewNop(), Config{})

	_, err := r.Retrieve(context.Background(), "query", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrEmbeddingUnavailable))
}

func TestRetriever_ParallelMatchesSequential(t *testing.T) {
	vectors := make([]models.Embedding, 0, 40)
	for i := 0; i < 40; i++ {
		vectors = append(vectors, models.Embedding{float64(i % 7), float64(i % 3), 1})
	}
	store, _ := seedStore(t, vectors...)
	embedder := &staticEmbedder{vec: []float64{3, 1, 0.5}}

	sequential := NewRetriever(store, embedder, zap.NewNop(), Config{ParallelThreshold: 1000})
	parallel := NewRetriever(store, embedder, zap.NewNop(), Config{ParallelThreshold: 2, Workers: 3})

	want, err := sequential.Retrieve(context.Background(), "query", 15)
	require.NoError(t, err)
	got, err := parallel.Retrieve(context.Background(), "query", 15)
	require.NoError(t, err)

	require.Len(t, got, 15)
	for i := range want {
		assert.Equal(t, want[i].Plan.ID, got[i].Plan.ID)
		assert.Equal(t, want[i].Score, got[i].Score)
	}
}

func TestRetriever_CancelledContext(t *testing.T) {
	store, _ := seedStore(t, models.Embedding{1, 0})
	r := NewRetriever(store, &staticEmbedder{vec: []float64{1, 0}}, zap.NewNop(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Retrieve(ctx, "query", 3)
	assert.Error(t, err)
}
