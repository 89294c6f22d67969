// Package memory implements the typed memory manager: LLM-driven
// analysis of user messages, duplicate merging, relevance+recency
// retrieval, periodic consolidation, and age-based cleanup.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"casalinger_engine/internal/config"
	"casalinger_engine/internal/llm"
	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

// Analysis is the structured verdict the language model returns for a
// user message.
type Analysis struct {
	IsImportant     bool     `json:"is_important"`
	FormattedMemory string   `json:"formatted_memory"`
	MemoryType      string   `json:"memory_type"`
	ImportanceScore float64  `json:"importance_score"`
	Tags            []string `json:"tags"`
}

// Manager owns the memory lifecycle for all users. The vector store is
// injected so tests can swap backends.
type Manager struct {
	store pkg.VectorStore
	model pkg.LanguageModel
	cfg   config.MemoryConfig
	now   func() time.Time
}

// NewManager builds a memory manager.
func NewManager(store pkg.VectorStore, model pkg.LanguageModel, cfg config.MemoryConfig) *Manager {
	return &Manager{store: store, model: model, cfg: cfg, now: time.Now}
}

// Analyze asks the model whether a message is worth remembering.
func (m *Manager) Analyze(ctx context.Context, message string) (*Analysis, error) {
	var analysis Analysis
	err := llm.CompleteJSON(ctx, m.model, analysisSystemPrompt, "Analyze this message: "+message, &analysis)
	if err != nil {
		return nil, fmt.Errorf("memory analysis failed: %w", err)
	}
	return &analysis, nil
}

// Record analyzes a user message and stores it if important. Near
// duplicates of the same type are merged in place: the newer content
// wins, the higher importance is kept. Returns nil when nothing was
// stored.
func (m *Manager) Record(ctx context.Context, userID, message string) (*pkg.MemoryEntry, error) {
	analysis, err := m.Analyze(ctx, message)
	if err != nil {
		return nil, err
	}
	if !analysis.IsImportant || analysis.FormattedMemory == "" || analysis.ImportanceScore < m.cfg.MinImportance {
		return nil, nil
	}

	memType := pkg.MemoryType(analysis.MemoryType)
	switch memType {
	case pkg.MemorySemantic, pkg.MemoryEpisodic, pkg.MemoryProcedural:
	default:
		memType = pkg.MemorySemantic
	}

	entry := pkg.MemoryEntry{
		ID:         uuid.NewString(),
		Content:    analysis.FormattedMemory,
		Type:       memType,
		Importance: analysis.ImportanceScore,
		Timestamp:  m.now(),
		Tags:       analysis.Tags,
		Metadata:   map[string]string{"source": "conversation"},
	}

	similar, err := m.store.Search(ctx, userID, entry.Content, 3, memType)
	if err != nil {
		return nil, err
	}
	for _, candidate := range similar {
		if candidate.Score >= m.cfg.DuplicateThreshold {
			merged := candidate.MemoryEntry
			merged.Content = entry.Content
			merged.Importance = maxFloat(candidate.Importance, entry.Importance)
			merged.Timestamp = entry.Timestamp
			merged.Tags = entry.Tags
			if err := m.store.Upsert(ctx, userID, merged); err != nil {
				return nil, err
			}
			logger.Debug().Str("user_id", userID).Str("memory_id", merged.ID).
				Float64("similarity", candidate.Score).Msg("merged near-duplicate memory")
			return &merged, nil
		}
	}

	if err := m.store.Upsert(ctx, userID, entry); err != nil {
		return nil, err
	}
	logger.Info().Str("user_id", userID).Str("type", string(memType)).
		Float64("importance", entry.Importance).Msg("stored new memory")
	return &entry, nil
}

// Retrieve returns the top memories of one type for a query, ranked by
// combined importance and recency.
func (m *Manager) Retrieve(ctx context.Context, userID, query string, memType pkg.MemoryType) ([]pkg.MemoryEntry, error) {
	// Over-fetch so the recency re-rank has candidates to demote.
	scored, err := m.store.Search(ctx, userID, query, m.cfg.TopK*2, memType)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		entry    pkg.MemoryEntry
		combined float64
	}
	candidates := make([]ranked, 0, len(scored))
	for _, sm := range scored {
		candidates = append(candidates, ranked{
			entry:    sm.MemoryEntry,
			combined: m.combinedScore(sm.MemoryEntry),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].combined > candidates[j].combined
	})

	limit := m.cfg.TopK
	if len(candidates) < limit {
		limit = len(candidates)
	}

	result := make([]pkg.MemoryEntry, 0, limit)
	for _, c := range candidates[:limit] {
		c.entry.AccessCount++
		if err := m.store.Upsert(ctx, userID, c.entry); err != nil {
			logger.Warn().Str("memory_id", c.entry.ID).Err(err).Msg("failed to record memory access")
		}
		result = append(result, c.entry)
	}
	return result, nil
}

// combinedScore weighs importance against linear recency decay.
func (m *Manager) combinedScore(entry pkg.MemoryEntry) float64 {
	days := m.now().Sub(entry.Timestamp).Hours() / 24
	recency := 1 - days/float64(m.cfg.RecencyWindowDays)
	if recency < 0 {
		recency = 0
	}
	return entry.Importance*m.cfg.ImportanceWeight + recency*m.cfg.RecencyWeight
}

// FormatForPrompt renders memories as a deduplicated content list for
// prompt injection.
func FormatForPrompt(memories []pkg.MemoryEntry) string {
	seen := make(map[string]bool)
	var lines []string
	for _, mem := range memories {
		content := strings.TrimSpace(mem.Content)
		if content == "" || seen[content] {
			continue
		}
		seen[content] = true
		lines = append(lines, "- "+content)
	}
	return strings.Join(lines, "\n")
}

// Consolidate clusters same-type memories above the similarity threshold
// and replaces each cluster with one merged entry. Returns the number of
// clusters merged.
func (m *Manager) Consolidate(ctx context.Context, userID string) (int, error) {
	merged := 0
	for _, memType := range pkg.MemoryTypes {
		entries, err := m.store.Scan(ctx, userID, memType)
		if err != nil {
			return merged, err
		}
		if len(entries) < m.cfg.ConsolidateMinPerType {
			continue
		}

		clusters, err := m.clusterBySimilarity(ctx, userID, entries)
		if err != nil {
			return merged, err
		}

		for _, cluster := range clusters {
			if len(cluster) < 2 {
				continue
			}
			if err := m.mergeCluster(ctx, userID, cluster); err != nil {
				logger.Warn().Str("user_id", userID).Err(err).Msg("cluster consolidation failed")
				continue
			}
			merged++
		}
	}
	return merged, nil
}

// clusterBySimilarity greedily groups entries whose similarity to a
// cluster seed exceeds the consolidation threshold. Similarity comes
// from the vector store's own search so clustering and retrieval agree.
func (m *Manager) clusterBySimilarity(ctx context.Context, userID string, entries []pkg.MemoryEntry) ([][]pkg.MemoryEntry, error) {
	assigned := make(map[string]bool)
	var clusters [][]pkg.MemoryEntry

	for _, seed := range entries {
		if assigned[seed.ID] {
			continue
		}
		assigned[seed.ID] = true
		cluster := []pkg.MemoryEntry{seed}

		neighbors, err := m.store.Search(ctx, userID, seed.Content, len(entries), seed.Type)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if assigned[n.ID] || n.ID == seed.ID {
				continue
			}
			if n.Score > m.cfg.ConsolidateThreshold {
				assigned[n.ID] = true
				cluster = append(cluster, n.MemoryEntry)
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters, nil
}

func (m *Manager) mergeCluster(ctx context.Context, userID string, cluster []pkg.MemoryEntry) error {
	var contents []string
	maxImportance := 0.0
	ids := make([]string, 0, len(cluster))
	for _, entry := range cluster {
		contents = append(contents, "- "+entry.Content)
		maxImportance = maxFloat(maxImportance, entry.Importance)
		ids = append(ids, entry.ID)
	}

	consolidated, err := m.model.Complete(ctx, consolidationSystemPrompt,
		"Memories to consolidate:\n"+strings.Join(contents, "\n")+"\n\nConsolidated memory:")
	if err != nil || strings.TrimSpace(consolidated) == "" {
		// Keep everything: join contents rather than lose information.
		consolidated = strings.Join(dedupe(cluster), "\n")
	}

	replacement := pkg.MemoryEntry{
		ID:         uuid.NewString(),
		Content:    strings.TrimSpace(consolidated),
		Type:       cluster[0].Type,
		Importance: maxImportance,
		Timestamp:  m.now(),
		Metadata:   map[string]string{"consolidated_from": strings.Join(ids, ",")},
	}

	for _, entry := range cluster {
		if err := m.store.Delete(ctx, userID, entry.ID); err != nil {
			return err
		}
	}
	return m.store.Upsert(ctx, userID, replacement)
}

func dedupe(cluster []pkg.MemoryEntry) []string {
	seen := make(map[string]bool)
	var contents []string
	for _, entry := range cluster {
		if !seen[entry.Content] {
			seen[entry.Content] = true
			contents = append(contents, entry.Content)
		}
	}
	return contents
}

// Cleanup deletes memories that are both old and unimportant. Returns
// the number deleted.
func (m *Manager) Cleanup(ctx context.Context, userID string) (int, error) {
	entries, err := m.store.Scan(ctx, userID, "")
	if err != nil {
		return 0, err
	}

	cutoff := m.now().AddDate(0, 0, -m.cfg.CleanupMaxAgeDays)
	deleted := 0
	for _, entry := range entries {
		if entry.Timestamp.Before(cutoff) && entry.Importance < m.cfg.CleanupMinImportance {
			if err := m.store.Delete(ctx, userID, entry.ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	if deleted > 0 {
		logger.Info().Str("user_id", userID).Int("deleted", deleted).Msg("memory cleanup complete")
	}
	return deleted, nil
}

// TypeStats summarizes one memory type for a user.
type TypeStats struct {
	Count         int     `json:"count"`
	AvgImportance float64 `json:"avg_importance"`
}

// Stats reports per-type memory counts and average importance.
func (m *Manager) Stats(ctx context.Context, userID string) (map[pkg.MemoryType]TypeStats, error) {
	stats := make(map[pkg.MemoryType]TypeStats)
	for _, memType := range pkg.MemoryTypes {
		entries, err := m.store.Scan(ctx, userID, memType)
		if err != nil {
			return nil, err
		}
		total := 0.0
		for _, entry := range entries {
			total += entry.Importance
		}
		ts := TypeStats{Count: len(entries)}
		if ts.Count > 0 {
			ts.AvgImportance = total / float64(ts.Count)
		}
		stats[memType] = ts
	}
	return stats, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
