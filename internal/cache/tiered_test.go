package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casalinger_engine/internal/config"
	"casalinger_engine/internal/embedding/mock"
	"casalinger_engine/pkg"
)

func newTestCache() *Tiered {
	cfg := config.CacheConfig{
		ResponseTTLSeconds: 1800,
		SemanticTTLSeconds: 1800,
		MemoryTTLSeconds:   3600,
		SemanticThreshold:  0.85,
		QuestionThreshold:  0.8,
		ContentThreshold:   0.7,
	}
	return NewTiered(NewMapKV(), mock.New(), cfg)
}

func TestVerbatimResponseRoundTrip(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	_, ok, err := cache.GetResponse(ctx, "u1", "show me 2 beds in Lekki")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.PutResponse(ctx, "u1", "show me 2 beds in Lekki", "two options"))

	answer, ok, err := cache.GetResponse(ctx, "u1", "show me 2 beds in Lekki")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two options", answer)
}

func TestVerbatimResponseNormalizesCaseAndSpace(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.PutResponse(ctx, "u1", "Show me 2 beds in Lekki", "two options"))

	answer, ok, err := cache.GetResponse(ctx, "u1", "  show me 2 beds in lekki ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two options", answer)
}

func TestVerbatimResponseIsolatedPerUser(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.PutResponse(ctx, "u1", "question", "answer for u1"))

	_, ok, err := cache.GetResponse(ctx, "u2", "question")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSemanticCacheHitOnIdenticalEmbedding(t *testing.T) {
	cache := newTestCache()
	embedder := mock.New()
	ctx := context.Background()

	question := "what is the tenancy law in Lagos"
	emb, err := embedder.Embed(ctx, question)
	require.NoError(t, err)

	require.NoError(t, cache.PutSemantic(ctx, "u1", question, emb, "tenancy answer"))

	answer, ok, err := cache.GetSemantic(ctx, "u1", emb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tenancy answer", answer)
}

func TestSemanticCacheMissOnDissimilarEmbedding(t *testing.T) {
	cache := newTestCache()
	embedder := mock.New()
	ctx := context.Background()

	emb1, err := embedder.Embed(ctx, "what is the tenancy law in Lagos")
	require.NoError(t, err)
	require.NoError(t, cache.PutSemantic(ctx, "u1", "what is the tenancy law in Lagos", emb1, "tenancy answer"))

	// A different question hashes to a near-orthogonal vector, well below
	// the similarity threshold.
	emb2, err := embedder.Embed(ctx, "how do I book a viewing")
	require.NoError(t, err)

	_, ok, err := cache.GetSemantic(ctx, "u1", emb2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheExactHit(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	entry := &MemoryRetrieval{
		Question: "2 beds in Ikeja",
		Semantic: []pkg.MemoryEntry{{ID: "m1", Content: "Prefers Ikeja", Type: pkg.MemorySemantic}},
		Context:  "- Prefers Ikeja",
	}
	require.NoError(t, cache.PutMemories(ctx, "u1", entry))

	got, ok, err := cache.GetMemories(ctx, "u1", "2 beds in Ikeja")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "- Prefers Ikeja", got.Context)
	require.Len(t, got.Semantic, 1)
	assert.Equal(t, "m1", got.Semantic[0].ID)
}

func TestMemoryCacheQuestionSimilarityHit(t *testing.T) {
	cache := newTestCache()
	embedder := mock.New()
	ctx := context.Background()

	// The stored question hashes differently, so the exact tier misses
	// and the hit must come from question-embedding similarity.
	newQuestion := "any 2 bedroom flats in Ikeja"
	questionEmb, err := embedder.Embed(ctx, newQuestion)
	require.NoError(t, err)

	entry := &MemoryRetrieval{
		Question:          "show me 2 beds in Ikeja",
		QuestionEmbedding: questionEmb,
		Context:           "- Prefers Ikeja",
	}
	require.NoError(t, cache.PutMemories(ctx, "u1", entry))

	got, ok, err := cache.GetMemories(ctx, "u1", newQuestion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "- Prefers Ikeja", got.Context)
}

func TestMemoryCacheContentSimilarityHit(t *testing.T) {
	cache := newTestCache()
	embedder := mock.New()
	ctx := context.Background()

	newQuestion := "where does the user want to live"
	contextEmb, err := embedder.Embed(ctx, newQuestion)
	require.NoError(t, err)
	unrelatedEmb, err := embedder.Embed(ctx, "completely unrelated question")
	require.NoError(t, err)

	// The prior question is dissimilar but the stored memory content
	// matches, so the hit must come from the content tier.
	entry := &MemoryRetrieval{
		Question:          "show me 2 beds in Ikeja",
		QuestionEmbedding: unrelatedEmb,
		ContextEmbedding:  contextEmb,
		Context:           "- Prefers Ikeja",
	}
	require.NoError(t, cache.PutMemories(ctx, "u1", entry))

	got, ok, err := cache.GetMemories(ctx, "u1", newQuestion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "- Prefers Ikeja", got.Context)
}

func TestMemoryCacheMissBelowBothThresholds(t *testing.T) {
	cache := newTestCache()
	embedder := mock.New()
	ctx := context.Background()

	// Both embeddings are near-orthogonal to the new question, so no
	// tier may claim a hit.
	unrelatedEmb, err := embedder.Embed(ctx, "completely unrelated question")
	require.NoError(t, err)

	entry := &MemoryRetrieval{
		Question:          "show me 2 beds in Ikeja",
		QuestionEmbedding: unrelatedEmb,
		ContextEmbedding:  unrelatedEmb,
		Context:           "- Prefers Ikeja",
	}
	require.NoError(t, cache.PutMemories(ctx, "u1", entry))

	_, ok, err := cache.GetMemories(ctx, "u1", "how do I pay my rent online")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCachePopulatesEmbeddingsOnPut(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	entry := &MemoryRetrieval{Question: "2 beds in Ikeja", Context: "- Prefers Ikeja"}
	require.NoError(t, cache.PutMemories(ctx, "u1", entry))

	assert.NotEmpty(t, entry.QuestionEmbedding)
	assert.NotEmpty(t, entry.ContextEmbedding)
	assert.False(t, entry.Timestamp.IsZero())
}

// ttlRecordingKV captures the TTL passed to every Set so tests can
// check each tier writes with its own expiry.
type ttlRecordingKV struct {
	pkg.KV
	ttls map[string]time.Duration
}

func (r *ttlRecordingKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	r.ttls[key] = ttl
	return r.KV.Set(ctx, key, value, ttl)
}

func TestEachTierWritesWithOwnTTL(t *testing.T) {
	cfg := config.CacheConfig{
		ResponseTTLSeconds: 1000,
		SemanticTTLSeconds: 2000,
		MemoryTTLSeconds:   3000,
		SemanticThreshold:  0.85,
		QuestionThreshold:  0.8,
		ContentThreshold:   0.7,
	}
	kv := &ttlRecordingKV{KV: NewMapKV(), ttls: make(map[string]time.Duration)}
	embedder := mock.New()
	cache := NewTiered(kv, embedder, cfg)
	ctx := context.Background()

	emb, err := embedder.Embed(ctx, "q")
	require.NoError(t, err)

	require.NoError(t, cache.PutResponse(ctx, "u1", "q", "a"))
	require.NoError(t, cache.PutSemantic(ctx, "u1", "q", emb, "a"))
	require.NoError(t, cache.PutMemories(ctx, "u1", &MemoryRetrieval{Question: "q"}))

	byPrefix := func(prefix string) time.Duration {
		for key, ttl := range kv.ttls {
			if strings.HasPrefix(key, prefix) {
				return ttl
			}
		}
		t.Fatalf("no key written with prefix %q", prefix)
		return 0
	}

	assert.Equal(t, 1000*time.Second, byPrefix(responsePrefix))
	assert.Equal(t, 2000*time.Second, byPrefix(semanticPrefix))
	assert.Equal(t, 3000*time.Second, byPrefix(memoryPrefix))
}

func TestStatsCountsPerTier(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.PutResponse(ctx, "u1", "q1", "a1"))
	require.NoError(t, cache.PutResponse(ctx, "u1", "q2", "a2"))
	require.NoError(t, cache.PutMemories(ctx, "u1", &MemoryRetrieval{Question: "q1"}))

	stats, err := cache.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats["responses"])
	assert.Equal(t, 0, stats["semantic"])
	assert.Equal(t, 1, stats["memory"])
}
