package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"casalinger_engine/internal/logger"
)

// OllamaEmbedder implements pkg.Embedder against a local ollama server.
// Embeddings from the same model are deterministic for identical input,
// which the cache tiers rely on.
type OllamaEmbedder struct {
	client *api.Client
	model  string
	dims   int
}

// NewOllama connects to the ollama server at host and probes the model
// once to learn the embedding dimensionality.
func NewOllama(ctx context.Context, host, model string) (*OllamaEmbedder, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama host: %w", err)
	}

	e := &OllamaEmbedder{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
	}

	probe, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("failed to probe embedding model '%s': %w", model, err)
	}
	e.dims = len(probe)

	logger.Info().Str("model", model).Int("dimensions", e.dims).Msg("embedding model ready")
	return e, nil
}

// Embed returns the embedding vector for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions returns the embedding size of the configured model.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}
