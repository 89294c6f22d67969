package engine

import (
	"context"

	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
)

// handleSemanticLookup answers open-ended questions from the vector
// corpora. The semantic cache short-circuits near-duplicate questions;
// misses run a full retrieval round and cache the result.
func (e *Engine) handleSemanticLookup(ctx context.Context, state *conversation.State, message string) string {
	userID := state.CurrentUserID

	questionEmb, err := e.embedder.Embed(ctx, message)
	if err != nil {
		logger.Warn().Err(err).Msg("question embedding failed, skipping semantic cache")
	} else if answer, ok, err := e.cache.GetSemantic(ctx, userID, questionEmb); err == nil && ok {
		return answer
	}

	properties, knowledge, err := e.retriever.Retrieve(ctx, message)
	if err != nil {
		logger.Warn().Err(err).Msg("retrieval failed")
		return "I'm having trouble looking that up right now. Please try again in a moment."
	}

	quality := e.retriever.AssessQuality(properties, knowledge)
	aiHistory := conversation.RecentAssistantReplies(state.Messages, 6)
	system := e.retriever.BuildPrompt(properties, knowledge, state.MemoryContext, state.Summary, aiHistory, quality)

	answer, err := e.model.Complete(ctx, system, message)
	if err != nil {
		logger.Warn().Err(err).Msg("semantic answer generation failed")
		return "I'm having trouble answering that right now. Please try again in a moment."
	}

	if questionEmb != nil {
		if err := e.cache.PutSemantic(ctx, userID, message, questionEmb, answer); err != nil {
			logger.Warn().Err(err).Msg("semantic cache write failed")
		}
	}
	return answer
}
