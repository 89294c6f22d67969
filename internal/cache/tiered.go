package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"casalinger_engine/internal/config"
	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

const (
	responsePrefix = "ai_response:"
	semanticPrefix = "semantic_cache:"
	memoryPrefix   = "memory_cache:"
)

// Tiered layers three per-user caches over one KV store:
//
//  1. verbatim response cache, keyed by a hash of the question
//  2. semantic response cache, matched by embedding similarity
//  3. memory-retrieval cache, matched first against prior questions,
//     then against prior memory content
//
// Entries expire by TTL only. Memory writes never invalidate them: the
// staleness window is bounded by the TTL and hit rates stay high.
type Tiered struct {
	kv       pkg.KV
	embedder pkg.Embedder
	cfg      config.CacheConfig
}

// NewTiered builds the tiered cache.
func NewTiered(kv pkg.KV, embedder pkg.Embedder, cfg config.CacheConfig) *Tiered {
	return &Tiered{kv: kv, embedder: embedder, cfg: cfg}
}

// QuestionHash canonicalizes a question into a cache-key hash.
func QuestionHash(question string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(question))))
	return hex.EncodeToString(sum[:])
}

// ====================== Verbatim response tier ======================

// GetResponse returns a previously cached answer for the exact question.
func (t *Tiered) GetResponse(ctx context.Context, userID, question string) (string, bool, error) {
	key := responsePrefix + userID + ":" + QuestionHash(question)
	raw, ok, err := t.kv.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}

	var answer string
	if err := sonic.Unmarshal([]byte(raw), &answer); err != nil {
		return "", false, nil
	}
	logger.Debug().Str("user_id", userID).Msg("verbatim response cache hit")
	return answer, true, nil
}

// PutResponse caches an answer for the exact question.
func (t *Tiered) PutResponse(ctx context.Context, userID, question, answer string) error {
	key := responsePrefix + userID + ":" + QuestionHash(question)
	data, err := sonic.Marshal(answer)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, key, string(data), t.cfg.ResponseTTL())
}

// ====================== Semantic response tier ======================

type semanticEntry struct {
	Question  string    `json:"question"`
	Embedding []float32 `json:"embedding"`
	Answer    string    `json:"answer"`
}

// GetSemantic scans the user's semantic cache for the entry most similar
// to the question embedding. A hit requires similarity at or above the
// configured threshold.
func (t *Tiered) GetSemantic(ctx context.Context, userID string, questionEmb []float32) (string, bool, error) {
	keys, err := t.kv.ScanPrefix(ctx, semanticPrefix+userID+":")
	if err != nil {
		return "", false, err
	}

	bestScore := 0.0
	bestAnswer := ""
	for _, key := range keys {
		raw, ok, err := t.kv.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var entry semanticEntry
		if err := sonic.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if score := pkg.Cosine(questionEmb, entry.Embedding); score > bestScore {
			bestScore = score
			bestAnswer = entry.Answer
		}
	}

	if bestScore >= t.cfg.SemanticThreshold {
		logger.Debug().Str("user_id", userID).Float64("score", bestScore).Msg("semantic cache hit")
		return bestAnswer, true, nil
	}
	return "", false, nil
}

// PutSemantic caches an answer with the question's embedding.
func (t *Tiered) PutSemantic(ctx context.Context, userID, question string, questionEmb []float32, answer string) error {
	key := semanticPrefix + userID + ":" + QuestionHash(question)
	data, err := sonic.Marshal(semanticEntry{
		Question:  question,
		Embedding: questionEmb,
		Answer:    answer,
	})
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, key, string(data), t.cfg.SemanticTTL())
}

// ====================== Memory-retrieval tier ======================

// MemoryRetrieval is a cached memory lookup: the three type lists, the
// formatted prompt context, and the embeddings the similarity tiers
// match against.
type MemoryRetrieval struct {
	Question          string            `json:"user_question"`
	QuestionEmbedding []float32         `json:"question_embedding,omitempty"`
	ContextEmbedding  []float32         `json:"context_embedding,omitempty"`
	Semantic          []pkg.MemoryEntry `json:"semantic_memories"`
	Episodic          []pkg.MemoryEntry `json:"episodic_memories"`
	Procedural        []pkg.MemoryEntry `json:"procedural_memories"`
	Context           string            `json:"memory_context"`
	Timestamp         time.Time         `json:"timestamp"`
}

// GetMemories resolves a cached memory retrieval for the question. Three
// checks in order, short-circuiting on the first hit: exact question
// hash, question-to-question similarity, question-to-memory-content
// similarity.
func (t *Tiered) GetMemories(ctx context.Context, userID, question string) (*MemoryRetrieval, bool, error) {
	// Tier 1: exact question.
	key := memoryPrefix + userID + ":" + QuestionHash(question)
	if raw, ok, err := t.kv.Get(ctx, key); err == nil && ok {
		var entry MemoryRetrieval
		if err := sonic.Unmarshal([]byte(raw), &entry); err == nil {
			logger.Debug().Str("user_id", userID).Msg("memory cache hit (exact)")
			return &entry, true, nil
		}
	}

	questionEmb, err := t.embedder.Embed(ctx, question)
	if err != nil {
		return nil, false, err
	}

	keys, err := t.kv.ScanPrefix(ctx, memoryPrefix+userID+":")
	if err != nil {
		return nil, false, err
	}

	var entries []*MemoryRetrieval
	for _, k := range keys {
		raw, ok, err := t.kv.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		var entry MemoryRetrieval
		if err := sonic.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}

	// Tier 2: similar prior question.
	var best *MemoryRetrieval
	bestScore := 0.0
	for _, entry := range entries {
		if score := pkg.Cosine(questionEmb, entry.QuestionEmbedding); score > bestScore {
			bestScore = score
			best = entry
		}
	}
	if best != nil && bestScore >= t.cfg.QuestionThreshold {
		logger.Debug().Str("user_id", userID).Float64("score", bestScore).Msg("memory cache hit (question similarity)")
		return best, true, nil
	}

	// Tier 3: similar prior memory content.
	best = nil
	bestScore = 0.0
	for _, entry := range entries {
		if score := pkg.Cosine(questionEmb, entry.ContextEmbedding); score > bestScore {
			bestScore = score
			best = entry
		}
	}
	if best != nil && bestScore >= t.cfg.ContentThreshold {
		logger.Debug().Str("user_id", userID).Float64("score", bestScore).Msg("memory cache hit (content similarity)")
		return best, true, nil
	}

	return nil, false, nil
}

// PutMemories caches a memory retrieval, embedding the question and the
// formatted context so later similarity checks don't re-embed stored
// entries.
func (t *Tiered) PutMemories(ctx context.Context, userID string, entry *MemoryRetrieval) error {
	if entry.QuestionEmbedding == nil {
		emb, err := t.embedder.Embed(ctx, entry.Question)
		if err != nil {
			return err
		}
		entry.QuestionEmbedding = emb
	}
	if entry.ContextEmbedding == nil && entry.Context != "" {
		emb, err := t.embedder.Embed(ctx, entry.Context)
		if err != nil {
			return err
		}
		entry.ContextEmbedding = emb
	}
	entry.Timestamp = time.Now()

	key := memoryPrefix + userID + ":" + QuestionHash(entry.Question)
	data, err := sonic.Marshal(entry)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, key, string(data), t.cfg.MemoryTTL())
}

// ====================== Statistics ======================

// Stats counts live keys per tier for one user.
func (t *Tiered) Stats(ctx context.Context, userID string) (map[string]int, error) {
	stats := make(map[string]int)
	for name, prefix := range map[string]string{
		"responses": responsePrefix,
		"semantic":  semanticPrefix,
		"memory":    memoryPrefix,
	} {
		keys, err := t.kv.ScanPrefix(ctx, prefix+userID+":")
		if err != nil {
			return nil, err
		}
		stats[name] = len(keys)
	}
	return stats, nil
}
