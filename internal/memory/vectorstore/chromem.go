// Package vectorstore implements pkg.VectorStore on chromem-go, a pure
// Go embedded vector database. Each user gets an isolated collection.
package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	chromem "github.com/philippgille/chromem-go"

	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

// ChromemStore holds memories in per-user chromem collections plus a
// plain index for metadata-filtered scans, which chromem does not offer.
type ChromemStore struct {
	db          *chromem.DB
	embedder    pkg.Embedder
	collections map[string]*chromem.Collection
	index       map[string]map[string]pkg.MemoryEntry
	mu          sync.RWMutex
}

// New creates an empty store backed by the given embedder.
func New(embedder pkg.Embedder) *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
		index:       make(map[string]map[string]pkg.MemoryEntry),
	}
}

func (s *ChromemStore) getOrCreateCollection(userID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[userID]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[userID]; exists {
		return col, nil
	}

	name := "user_" + userID
	if userID == "" {
		name = "global"
	}
	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[userID] = col
	s.index[userID] = make(map[string]pkg.MemoryEntry)
	return col, nil
}

// Upsert stores or replaces a memory by ID.
func (s *ChromemStore) Upsert(ctx context.Context, userID string, entry pkg.MemoryEntry) error {
	col, err := s.getOrCreateCollection(userID)
	if err != nil {
		return err
	}

	embedding, err := s.embedder.Embed(ctx, entry.Content)
	if err != nil {
		return fmt.Errorf("embed memory content: %w", err)
	}

	content, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize memory: %w", err)
	}

	doc := chromem.Document{
		ID:        entry.ID,
		Content:   string(content),
		Embedding: embedding,
		Metadata: map[string]string{
			"memory_type": string(entry.Type),
			"created_at":  entry.Timestamp.Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.mu.Lock()
	s.index[userID][entry.ID] = entry
	s.mu.Unlock()

	logger.Debug().Str("user_id", userID).Str("memory_id", entry.ID).
		Str("type", string(entry.Type)).Msg("memory stored")
	return nil
}

// Search returns up to k memories ranked by similarity to query.
func (s *ChromemStore) Search(ctx context.Context, userID, query string, k int, typeFilter pkg.MemoryType) ([]pkg.ScoredMemory, error) {
	col, err := s.getOrCreateCollection(userID)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var where map[string]string
	if typeFilter != "" {
		where = map[string]string{"memory_type": string(typeFilter)}
	}

	// chromem requires nResults <= matching documents; retry smaller.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	scored := make([]pkg.ScoredMemory, 0, len(results))
	for _, result := range results {
		var entry pkg.MemoryEntry
		if err := sonic.Unmarshal([]byte(result.Content), &entry); err != nil {
			logger.Warn().Str("memory_id", result.ID).Err(err).Msg("skipping unreadable memory")
			continue
		}
		scored = append(scored, pkg.ScoredMemory{
			MemoryEntry: entry,
			Score:       float64(result.Similarity),
		})
	}
	return scored, nil
}

// Scan lists all memories for a user, optionally filtered by type.
func (s *ChromemStore) Scan(_ context.Context, userID string, typeFilter pkg.MemoryType) ([]pkg.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []pkg.MemoryEntry
	for _, entry := range s.index[userID] {
		if typeFilter != "" && entry.Type != typeFilter {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes a memory by ID.
func (s *ChromemStore) Delete(ctx context.Context, userID, id string) error {
	col, err := s.getOrCreateCollection(userID)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	s.mu.Lock()
	delete(s.index[userID], id)
	s.mu.Unlock()
	return nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
