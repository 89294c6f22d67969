package engine

import (
	"context"
	"strings"

	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
	"casalinger_engine/internal/query"
)

const maxAttemptsMessage = "Sorry, I couldn't find an answer to your question after several tries. " +
	"Please try rephrasing your question or ask about something else!"

const humanizeSystemPrompt = `You are an assistant that converts SQL query results into clear, natural language responses.
Use all provided information, including prior memory and summary, to personalize your answer.
Never mention SQL, summaries, or memory context explicitly.

Response Guidelines:
- Number listings if multiple (e.g., "1.", "2.")
- Use bullet points for a single listing.
- Include markdown links for URLs: [View listing](https://example.com/listing/1)
- Never show raw SQL.
- Always be helpful, concise, and professional.

RESPONSE GUIDES:
User: Show me 2-bedroom apartments in Lagos.
AI response:
1. **Gbenga Apartment**, a 2-bedroom property, is available for rent at **₦900,000.00** in Agric, Lagos. [View listing](https://example.com/listing/1)
2. **Ola Heights**, a 2-bedroom property, is available for **₦1,200,000.00** in Ikorodu, Lagos. [View listing](https://example.com/listing/2)

Ask the user if they would like to know more.`

// handleStructuredQuery runs the generate-execute-humanize loop. A
// failed execution rewrites the question and regenerates; after the
// attempt cap the turn ends with a terminal apology instead of looping.
func (e *Engine) handleStructuredQuery(ctx context.Context, state *conversation.State, message string) string {
	question := message
	preferences := query.ExtractPreferences(
		conversation.FormatHistory(state.Messages, 2),
		state.Summary,
		state.MemoryContext,
	)

	state.Attempts = 0
	for state.Attempts < e.cfg.Engine.MaxAttempts {
		sql, err := e.generator.ConvertToSQL(ctx, question)
		if err != nil {
			logger.Warn().Err(err).Msg("sql generation failed")
			state.Attempts++
			continue
		}

		outcome := query.Execute(ctx, e.executor, sql, preferences)
		if !outcome.Failed {
			return e.humanizeResult(ctx, state, sql, outcome)
		}

		logger.Warn().Str("sql", sql).Str("error", outcome.Result).Msg("query execution failed, rewriting")
		state.Attempts++
		if state.Attempts >= e.cfg.Engine.MaxAttempts {
			break
		}

		rewritten, err := e.generator.RewriteQuestion(ctx, question)
		if err == nil && rewritten != "" {
			question = rewritten
			state.ReplaceLatestUserMessage(rewritten)
		}
	}
	return maxAttemptsMessage
}

// lookupRows runs a single generate-and-execute round and returns the
// raw rows. Used by the slot-filling flows to resolve a property.
func (e *Engine) lookupRows(ctx context.Context, question string) []map[string]any {
	sql, err := e.generator.ConvertToSQL(ctx, question)
	if err != nil {
		logger.Warn().Err(err).Msg("lookup sql generation failed")
		return nil
	}
	outcome := query.Execute(ctx, e.executor, sql, nil)
	if outcome.Failed {
		return nil
	}
	return outcome.Rows
}

// humanizeResult wraps the rendered query result in a conversational
// reply grounded in the user's memory and summary.
func (e *Engine) humanizeResult(ctx context.Context, state *conversation.State, sql string, outcome query.Outcome) string {
	greeting := ""
	if len(state.Messages) <= 1 {
		greeting = "Hello " + state.CurrentUser + ", "
	}

	system := humanizeSystemPrompt + "\n\nContext:\n" +
		"- Summary: " + state.Summary + "\n" +
		"- Long-Term Memory: " + state.MemoryContext + "\n" +
		"- Recent Conversation: " + conversation.FormatHistory(state.Messages, e.cfg.Engine.HistoryTurns)

	var user string
	switch {
	case len(outcome.Rows) == 0 && strings.HasPrefix(strings.ToLower(sql), "select"):
		user = greeting + "Unfortunately, I couldn't find any listings matching your request.\n\nPlease let me know if you'd like to search again."
	case strings.HasPrefix(strings.ToLower(sql), "select"):
		user = greeting + "These listings match your request:\n\n" + outcome.Result + "\n\nWould you like to see more options?"
	default:
		user = greeting + "Your request has been processed successfully.\n\nWould you like help with anything else?"
	}

	answer, err := e.model.Complete(ctx, system, user)
	if err != nil {
		logger.Warn().Err(err).Msg("humanize failed, returning raw result")
		return outcome.Result
	}
	return answer
}
