package rag

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"casalinger_engine/pkg"
)

// ChromemSource is a PassageSource over one chromem collection. Property
// listings and knowledge-base articles each get their own source.
type ChromemSource struct {
	col      *chromem.Collection
	embedder pkg.Embedder
}

// NewChromemSource opens (or creates) the named collection.
func NewChromemSource(db *chromem.DB, name string, embedder pkg.Embedder) (*ChromemSource, error) {
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", name, err)
	}
	return &ChromemSource{col: col, embedder: embedder}, nil
}

// Add indexes one passage.
func (s *ChromemSource) Add(ctx context.Context, id, content string, metadata map[string]string) error {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed passage: %w", err)
	}
	return s.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	})
}

// Query returns up to k passages ranked by similarity.
func (s *ChromemSource) Query(ctx context.Context, text string, k int) ([]Passage, error) {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// chromem rejects nResults above the document count; retry smaller.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = s.col.QueryEmbedding(ctx, embedding, limit, nil, nil)
		if err == nil {
			break
		}
		if isCountError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, Passage{
			ID:      r.ID,
			Content: r.Content,
			Score:   float64(r.Similarity),
		})
	}
	return passages, nil
}

func isCountError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
