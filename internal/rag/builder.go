// Package rag builds retrieval-augmented context for semantic lookups:
// it fetches property and knowledge-base passages, scores overall
// confidence, and assembles the answer prompt.
package rag

import (
	"context"
	"fmt"
	"strings"

	"casalinger_engine/internal/config"
)

// Passage is one retrieved document with its similarity score.
type Passage struct {
	ID      string
	Content string
	Score   float64
}

// PassageSource serves similarity queries over one corpus.
type PassageSource interface {
	Query(ctx context.Context, text string, k int) ([]Passage, error)
}

// Quality summarizes how trustworthy a retrieval round was.
type Quality struct {
	PropertyScore  float64
	KnowledgeScore float64
	TotalDocs      int
	Confidence     string // "high", "medium", "low"
}

// Builder retrieves from the property and knowledge corpora and
// assembles the semantic-answer prompt.
type Builder struct {
	property  PassageSource
	knowledge PassageSource
	cfg       config.RetrievalConfig
}

// NewBuilder wires the two corpora.
func NewBuilder(property, knowledge PassageSource, cfg config.RetrievalConfig) *Builder {
	return &Builder{property: property, knowledge: knowledge, cfg: cfg}
}

// Retrieve fetches top-k passages from both corpora and drops anything
// below the per-corpus confidence floor.
func (b *Builder) Retrieve(ctx context.Context, question string) (properties, knowledge []Passage, err error) {
	props, err := b.property.Query(ctx, question, b.cfg.PropertyK)
	if err != nil {
		return nil, nil, fmt.Errorf("property retrieval failed: %w", err)
	}
	docs, err := b.knowledge.Query(ctx, question, b.cfg.KnowledgeK)
	if err != nil {
		return nil, nil, fmt.Errorf("knowledge retrieval failed: %w", err)
	}

	for _, p := range props {
		if p.Score > b.cfg.PropertyFloor {
			properties = append(properties, p)
		}
	}
	for _, d := range docs {
		if d.Score > b.cfg.KnowledgeFloor {
			knowledge = append(knowledge, d)
		}
	}
	return properties, knowledge, nil
}

// AssessQuality buckets the retrieval round into a confidence tier from
// the sum of per-corpus mean scores.
func (b *Builder) AssessQuality(properties, knowledge []Passage) Quality {
	q := Quality{
		PropertyScore:  meanScore(properties),
		KnowledgeScore: meanScore(knowledge),
		TotalDocs:      len(properties) + len(knowledge),
	}

	switch sum := q.PropertyScore + q.KnowledgeScore; {
	case sum > b.cfg.HighConfidence:
		q.Confidence = "high"
	case sum > b.cfg.MediumConfidence:
		q.Confidence = "medium"
	default:
		q.Confidence = "low"
	}
	return q
}

func meanScore(passages []Passage) float64 {
	if len(passages) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range passages {
		total += p.Score
	}
	return total / float64(len(passages))
}

// BuildPrompt assembles the system prompt for the semantic path. Each
// passage is prefixed with its confidence score, and low-quality rounds
// instruct the model to hedge rather than fabricate.
func (b *Builder) BuildPrompt(properties, knowledge []Passage, memoryContext, summary, aiHistory string, quality Quality) string {
	qualityNote := ""
	switch quality.Confidence {
	case "low":
		qualityNote = "\n\nNOTE: Limited relevant information found. Provide general guidance and suggest rephrasing."
	case "medium":
		qualityNote = "\n\nNOTE: Moderate context available. Acknowledge limitations in response."
	}

	var prompt strings.Builder
	prompt.WriteString(`You are a professional real estate AI assistant for Nigeria. Provide accurate, helpful responses based on available information.

RESPONSE GUIDELINES:
- Keep responses CONCISE and BRIEF to the point
- Do not mention where the information was retrieved from; respond head-on
- Use bullet points for multiple options or steps
- Use **bold labels** like **Amenities** to make section headers more readable
- Focus on practical, actionable advice
- If information is limited, acknowledge this briefly and provide general guidance
- For legal questions, provide essential information and recommend consulting professionals
- Maintain consistency with previous responses

CONTEXT QUALITY:`)
	prompt.WriteString(qualityNote)

	prompt.WriteString("\n\nUSER MEMORY & HISTORY:\n")
	prompt.WriteString(memoryContext)
	prompt.WriteString("\n\nCONVERSATION SUMMARY:\n")
	prompt.WriteString(summary)
	prompt.WriteString("\n\nPREVIOUS RESPONSES:\n")
	prompt.WriteString(aiHistory)
	prompt.WriteString("\n\nRELEVANT PROPERTY LISTINGS:\n")
	prompt.WriteString(formatPassages(properties))
	prompt.WriteString("\n\nRELEVANT KNOWLEDGE BASE INFO:\n")
	prompt.WriteString(formatPassages(knowledge))

	prompt.WriteString(`

IMPORTANT: Keep your response brief and focused. If the available information doesn't directly answer the question, say so briefly and provide the best possible guidance about Nigerian real estate. Do not include any meta-text about what you're doing.`)

	return prompt.String()
}

func formatPassages(passages []Passage) string {
	if len(passages) == 0 {
		return "(none)"
	}
	formatted := make([]string, 0, len(passages))
	for _, p := range passages {
		formatted = append(formatted, fmt.Sprintf("[Confidence: %.2f]\n%s", p.Score, p.Content))
	}
	return strings.Join(formatted, "\n---\n")
}
