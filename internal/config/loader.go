package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"casalinger_engine/internal/logger"
)

// Config is the full engine configuration: tuning knobs from config.yaml,
// secrets and endpoints from the environment.
type Config struct {
	Log       logger.Config   `yaml:"log"`
	Model     ModelConfig     `yaml:"model"`
	Cache     CacheConfig     `yaml:"cache"`
	Memory    MemoryConfig    `yaml:"memory"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Engine    EngineConfig    `yaml:"engine"`
	Env       EnvConfig       `yaml:"-"`
}

// ModelConfig selects the chat-model provider and embedding model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // "openai" or "ollama"
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	EmbedModel  string  `yaml:"embed_model"`
}

// CacheConfig tunes the three response-cache tiers. The similarity
// thresholds are hand-tuned and deliberately configurable.
type CacheConfig struct {
	ResponseTTLSeconds int     `yaml:"response_ttl_seconds"`
	SemanticTTLSeconds int     `yaml:"semantic_ttl_seconds"`
	MemoryTTLSeconds   int     `yaml:"memory_ttl_seconds"`
	SemanticThreshold  float64 `yaml:"semantic_threshold"`
	QuestionThreshold  float64 `yaml:"question_threshold"`
	ContentThreshold   float64 `yaml:"content_threshold"`
}

func (c CacheConfig) ResponseTTL() time.Duration {
	return time.Duration(c.ResponseTTLSeconds) * time.Second
}

func (c CacheConfig) SemanticTTL() time.Duration {
	return time.Duration(c.SemanticTTLSeconds) * time.Second
}

func (c CacheConfig) MemoryTTL() time.Duration {
	return time.Duration(c.MemoryTTLSeconds) * time.Second
}

// MemoryConfig tunes the memory manager.
type MemoryConfig struct {
	TopK                 int     `yaml:"top_k"`
	ImportanceWeight     float64 `yaml:"importance_weight"`
	RecencyWeight        float64 `yaml:"recency_weight"`
	RecencyWindowDays    int     `yaml:"recency_window_days"`
	DuplicateThreshold   float64 `yaml:"duplicate_threshold"`
	MinImportance        float64 `yaml:"min_importance"`
	ConsolidateEvery     int     `yaml:"consolidate_every"`
	ConsolidateMinPerType int    `yaml:"consolidate_min_per_type"`
	ConsolidateThreshold float64 `yaml:"consolidate_threshold"`
	CleanupMaxAgeDays    int     `yaml:"cleanup_max_age_days"`
	CleanupMinImportance float64 `yaml:"cleanup_min_importance"`
}

// RetrievalConfig tunes the retrieval-augmented context builder.
type RetrievalConfig struct {
	PropertyK        int     `yaml:"property_k"`
	KnowledgeK       int     `yaml:"knowledge_k"`
	PropertyFloor    float64 `yaml:"property_floor"`
	KnowledgeFloor   float64 `yaml:"knowledge_floor"`
	HighConfidence   float64 `yaml:"high_confidence"`
	MediumConfidence float64 `yaml:"medium_confidence"`
}

// EngineConfig tunes the orchestrator itself.
type EngineConfig struct {
	MaxAttempts            int `yaml:"max_attempts"`
	MaxSubQuestions        int `yaml:"max_sub_questions"`
	HistoryTurns           int `yaml:"history_turns"`
	MessagesAfterSummary   int `yaml:"messages_after_summary"`
	ConversationTTLSeconds int `yaml:"conversation_ttl_seconds"`
}

func (c EngineConfig) ConversationTTL() time.Duration {
	return time.Duration(c.ConversationTTLSeconds) * time.Second
}

// EnvConfig holds secrets and endpoints that never belong in config.yaml.
type EnvConfig struct {
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	RedisURL     string `envconfig:"REDIS_URL"`
	OllamaHost   string `envconfig:"OLLAMA_HOST" default:"http://127.0.0.1:11434"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"casalinger.db"`
}

// Load reads config.yaml, applies defaults for anything unset, and
// overlays the environment.
func Load(filepath string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	if err := envconfig.Process("", &config.Env); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}
	if err := envconfig.Process("", &config.Log); err != nil {
		return nil, fmt.Errorf("error processing log configuration: %w", err)
	}

	return config, nil
}

// Default returns the engine's built-in tuning values.
func Default() *Config {
	return &Config{
		Log: logger.Config{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			MaxTokens:   1500,
			Temperature: 0.1,
			EmbedModel:  "nomic-embed-text",
		},
		Cache: CacheConfig{
			ResponseTTLSeconds: 1800,
			SemanticTTLSeconds: 1800,
			MemoryTTLSeconds:   3600,
			SemanticThreshold:  0.85,
			QuestionThreshold:  0.8,
			ContentThreshold:   0.7,
		},
		Memory: MemoryConfig{
			TopK:                  5,
			ImportanceWeight:      0.7,
			RecencyWeight:         0.3,
			RecencyWindowDays:     30,
			DuplicateThreshold:    0.8,
			MinImportance:         0.3,
			ConsolidateEvery:      10,
			ConsolidateMinPerType: 5,
			ConsolidateThreshold:  0.8,
			CleanupMaxAgeDays:     90,
			CleanupMinImportance:  0.3,
		},
		Retrieval: RetrievalConfig{
			PropertyK:        2,
			KnowledgeK:       5,
			PropertyFloor:    0.70,
			KnowledgeFloor:   0.65,
			HighConfidence:   1.2,
			MediumConfidence: 0.6,
		},
		Engine: EngineConfig{
			MaxAttempts:            3,
			MaxSubQuestions:        2,
			HistoryTurns:           4,
			MessagesAfterSummary:   2,
			ConversationTTLSeconds: 3600,
		},
	}
}
