package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"casalinger_engine/internal/config"
	"casalinger_engine/internal/logger"
)

// Client implements pkg.LanguageModel on top of an eino chat model.
// The provider is selected by config: openai-compatible endpoints for
// hosted models, ollama for local ones.
type Client struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// New builds the chat model for the configured provider and compiles the
// completion chain (template -> chat model).
func New(ctx context.Context, cfg config.ModelConfig, env config.EnvConfig) (*Client, error) {
	chatModel, err := newChatModel(ctx, cfg, env)
	if err != nil {
		return nil, err
	}

	// GoTemplate rather than FString: prompts carry literal braces
	// (JSON examples, SQL snippets) that FString would treat as slots.
	template := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage("{{.system}}"),
		schema.UserMessage("{{.user}}"),
	)

	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(template).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating completion chain: %w", err)
	}

	return &Client{chain: chain}, nil
}

func newChatModel(ctx context.Context, cfg config.ModelConfig, env config.EnvConfig) (model.BaseChatModel, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: env.OllamaHost,
			Model:   cfg.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating ollama chat model: %w", err)
		}
		return m, nil
	case "openai", "":
		maxTokens := cfg.MaxTokens
		temperature := float32(cfg.Temperature)
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      env.OpenAIAPIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Name,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating openai chat model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
}

// Complete runs a system/user prompt pair through the chain and returns
// the model's text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	out, err := c.chain.Invoke(ctx, map[string]any{
		"system": system,
		"user":   user,
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	logger.Debug().Int("response_length", len(out.Content)).Msg("completion returned")
	return out.Content, nil
}
