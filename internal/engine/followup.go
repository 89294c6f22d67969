package engine

import (
	"context"

	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

const followUpRewriteSystem = `You are an AI assistant helping users find and give descriptions of real estate listings. Do not greet on follow-up questions and give short responses.

- The user has asked a follow-up question.
- Use the previous conversation to determine what they are referring to.

Reformulate the question so that it explicitly mentions any missing details (e.g., price, location, listing title, bedrooms, bathrooms).

Special Instructions for Booking and Application:
- If the user asks to book a viewing, tour, or inspection, or to apply for a property, rewrite the question to only identify the property (e.g., 'What is the title, id, and agent email of the second listing you mentioned earlier?').
- Exclude booking, tour, inspection, or application intent from the rewritten question.
- Do not mention booking, tour, inspection, or application in the rewritten question.

Example User: Book a tour or inspection for the second listing you mentioned earlier.
Rewritten: What is the title, id, and agent email of the second listing you mentioned earlier?
Example User: I want to apply for Grarrison Homes.
Rewritten: What is the title, id, and agent email of Grarrison Homes?

Respond with ONLY the rewritten question.`

// rewriteFollowUp resolves references like "the second one" against the
// conversation history. Booking and application phrasing is stripped so
// the downstream query only identifies the property.
func (e *Engine) rewriteFollowUp(ctx context.Context, state *conversation.State, question string) string {
	history := conversation.FormatHistory(state.Messages, e.cfg.Engine.HistoryTurns)
	user := "Conversation History:\n" + history + "\n\nOriginal Question: " + question + "\nRewrite it with missing details."

	rewritten, err := e.model.Complete(ctx, followUpRewriteSystem, user)
	if err != nil || rewritten == "" {
		logger.Warn().Err(err).Msg("follow-up rewrite failed, using original question")
		return question
	}
	return rewritten
}

// handleFollowUp rewrites the question against history and dispatches it
// to one of the two retrieval paths.
func (e *Engine) handleFollowUp(ctx context.Context, state *conversation.State, message string) string {
	rewritten := e.rewriteFollowUp(ctx, state, message)
	state.ReplaceLatestUserMessage(rewritten)

	if e.classifyFollowupRoute(ctx, state, rewritten) == pkg.RouteStructuredQuery {
		return e.handleStructuredQuery(ctx, state, rewritten)
	}
	return e.handleSemanticLookup(ctx, state, rewritten)
}
