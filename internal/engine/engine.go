// Package engine is the dialogue orchestrator: one HandleTurn call
// resolves the user, injects memories, classifies the message, and
// dispatches it through the matching pipeline before summarizing and
// persisting the conversation.
package engine

import (
	"context"
	"fmt"
	"strings"

	"casalinger_engine/internal/cache"
	"casalinger_engine/internal/config"
	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
	"casalinger_engine/internal/memory"
	"casalinger_engine/internal/query"
	"casalinger_engine/internal/rag"
	"casalinger_engine/pkg"
)

// Engine wires every collaborator behind one turn-handling entry point.
// All dependencies are injected; nothing here opens connections.
type Engine struct {
	store     conversation.Store
	cache     *cache.Tiered
	memories  *memory.Manager
	retriever *rag.Builder
	generator *query.Generator
	executor  pkg.QueryExecutor
	gateway   pkg.SubmissionGateway
	model     pkg.LanguageModel
	embedder  pkg.Embedder
	cfg       *config.Config
}

// Options collects the engine's dependencies.
type Options struct {
	Store     conversation.Store
	Cache     *cache.Tiered
	Memories  *memory.Manager
	Retriever *rag.Builder
	Generator *query.Generator
	Executor  pkg.QueryExecutor
	Gateway   pkg.SubmissionGateway
	Model     pkg.LanguageModel
	Embedder  pkg.Embedder
	Config    *config.Config
}

// New builds an engine from its dependencies.
func New(opts Options) *Engine {
	return &Engine{
		store:     opts.Store,
		cache:     opts.Cache,
		memories:  opts.Memories,
		retriever: opts.Retriever,
		generator: opts.Generator,
		executor:  opts.Executor,
		gateway:   opts.Gateway,
		model:     opts.Model,
		embedder:  opts.Embedder,
		cfg:       opts.Config,
	}
}

// HandleTurn processes one user message end to end and returns the
// assistant's reply. State is loaded at the start and saved at the end;
// a crash between turns loses at most the current turn.
func (e *Engine) HandleTurn(ctx context.Context, userID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("empty message")
	}

	state, err := e.store.Load(ctx, userID)
	if err != nil {
		logger.Warn().Str("user_id", userID).Err(err).Msg("state load failed, starting fresh")
		state = nil
	}
	if state == nil {
		state = conversation.NewState(userID)
	}
	state.AddUserMessage(message)
	state.TurnCount++

	e.resolveIdentity(ctx, state)

	// Verbatim cache first: a hit answers the turn with no model calls.
	if answer, ok, err := e.cache.GetResponse(ctx, userID, message); err == nil && ok {
		state.AddAssistantMessage(answer)
		e.saveState(ctx, userID, state)
		return answer, nil
	}

	retrieval := e.injectMemories(ctx, state, message)

	answer, cacheable := e.dispatch(ctx, state, message, retrieval)

	state.AddAssistantMessage(answer)
	if cacheable {
		if err := e.cache.PutResponse(ctx, userID, message, answer); err != nil {
			logger.Warn().Err(err).Msg("response cache write failed")
		}
	}

	e.summarize(ctx, state)
	e.recordMemory(ctx, state, message)
	e.maintainMemory(ctx, state)
	e.saveState(ctx, userID, state)
	return answer, nil
}

// dispatch routes the message and runs the matching handler. The second
// return reports whether the answer may enter the verbatim cache:
// slot-filling turns are stateful and must never be replayed.
func (e *Engine) dispatch(ctx context.Context, state *conversation.State, message string, retrieval *cache.MemoryRetrieval) (string, bool) {
	if !state.AwaitingViewingInfo && !state.AwaitingApplicationInfo {
		if isCannedGreeting(message) {
			return e.respondGreeting(ctx, state, message), false
		}
		if verdict := e.classifyConversational(ctx, state, message); verdict == "conversational" {
			state.IntentRoute = "conversational"
			return e.respondConversational(ctx, state, message, retrieval), false
		}
		state.IntentRoute = "structured"
	}

	route := e.classifyRoute(ctx, state, message)
	state.Intent = route
	logger.Info().Str("user_id", state.CurrentUserID).Str("route", route.String()).Msg("dispatching turn")

	switch route {
	case pkg.RouteStructuredQuery:
		return e.handleStructuredQuery(ctx, state, message), true
	case pkg.RouteSemanticLookup:
		return e.handleSemanticLookup(ctx, state, message), true
	case pkg.RouteOrchestration:
		return e.handleMultiIntent(ctx, state, message), true
	case pkg.RouteJoke:
		return e.respondJoke(ctx), false
	case pkg.RouteFollowUp:
		return e.handleFollowUp(ctx, state, message), true
	case pkg.RouteBookingFlow:
		return e.handleViewingFlow(ctx, state, message), false
	case pkg.RouteApplicationFlow:
		return e.handleApplicationFlow(ctx, state, message), false
	case pkg.RouteDirectAnswer, pkg.RouteUnknown:
		return e.respondConversational(ctx, state, message, retrieval), false
	}
	return e.respondConversational(ctx, state, message, retrieval), false
}

// resolveIdentity looks the user's display name up once per
// conversation. Lookup failure never fails the turn: the sentinel name
// keeps prompts well-formed.
func (e *Engine) resolveIdentity(ctx context.Context, state *conversation.State) {
	if state.CurrentUser != "" {
		return
	}

	sql := fmt.Sprintf("SELECT name FROM users WHERE id = '%s' LIMIT 1", strings.ReplaceAll(state.CurrentUserID, "'", "''"))
	result, err := e.executor.Execute(ctx, sql)
	if err != nil || len(result.Rows) == 0 {
		state.CurrentUser = "User not found"
		return
	}
	if name, ok := result.Rows[0]["name"].(string); ok && name != "" {
		state.CurrentUser = name
	} else {
		state.CurrentUser = "User not found"
	}
}

// injectMemories resolves the user's memory context through the cache,
// falling back to a live retrieval of all three types on a miss.
func (e *Engine) injectMemories(ctx context.Context, state *conversation.State, message string) *cache.MemoryRetrieval {
	userID := state.CurrentUserID

	if cached, ok, err := e.cache.GetMemories(ctx, userID, message); err == nil && ok {
		state.MemoryContext = cached.Context
		return cached
	}

	retrieval := &cache.MemoryRetrieval{Question: message}
	var all []pkg.MemoryEntry
	for _, memType := range pkg.MemoryTypes {
		entries, err := e.memories.Retrieve(ctx, userID, message, memType)
		if err != nil {
			logger.Warn().Str("type", string(memType)).Err(err).Msg("memory retrieval failed")
			continue
		}
		switch memType {
		case pkg.MemorySemantic:
			retrieval.Semantic = entries
		case pkg.MemoryEpisodic:
			retrieval.Episodic = entries
		case pkg.MemoryProcedural:
			retrieval.Procedural = entries
		}
		all = append(all, entries...)
	}

	retrieval.Context = memory.FormatForPrompt(all)
	state.MemoryContext = retrieval.Context

	if err := e.cache.PutMemories(ctx, userID, retrieval); err != nil {
		logger.Warn().Err(err).Msg("memory cache write failed")
	}
	return retrieval
}

// recordMemory extracts and stores anything worth remembering from the
// user's message. Failures are logged, never surfaced.
func (e *Engine) recordMemory(ctx context.Context, state *conversation.State, message string) {
	if _, err := e.memories.Record(ctx, state.CurrentUserID, message); err != nil {
		logger.Warn().Str("user_id", state.CurrentUserID).Err(err).Msg("memory extraction failed")
	}
}

// maintainMemory runs cleanup and consolidation on a fixed turn cadence.
func (e *Engine) maintainMemory(ctx context.Context, state *conversation.State) {
	every := e.cfg.Memory.ConsolidateEvery
	if every <= 0 || state.TurnCount%every != 0 {
		return
	}

	userID := state.CurrentUserID
	if deleted, err := e.memories.Cleanup(ctx, userID); err != nil {
		logger.Warn().Str("user_id", userID).Err(err).Msg("memory cleanup failed")
	} else if deleted > 0 {
		logger.Info().Str("user_id", userID).Int("deleted", deleted).Msg("periodic memory cleanup")
	}
	if merged, err := e.memories.Consolidate(ctx, userID); err != nil {
		logger.Warn().Str("user_id", userID).Err(err).Msg("memory consolidation failed")
	} else if merged > 0 {
		logger.Info().Str("user_id", userID).Int("merged", merged).Msg("memories consolidated")
	}
}

func (e *Engine) saveState(ctx context.Context, userID string, state *conversation.State) {
	if err := e.store.Save(ctx, userID, state); err != nil {
		logger.Error().Str("user_id", userID).Err(err).Msg("state save failed")
	}
}
