package engine

import (
	"context"

	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
)

// summarize folds the latest exchange into the rolling summary and trims
// the message window. The summary carries the long tail of context so
// trimming never loses what the user already said.
func (e *Engine) summarize(ctx context.Context, state *conversation.State) {
	latest := conversation.FormatHistory(state.Messages, 2)
	if latest == "" {
		return
	}

	var prompt string
	if state.Summary != "" {
		prompt = "This is a summary of the previous conversation between the assistant and the user:\n\n" +
			state.Summary + "\n\n" +
			"Extend the summary by taking into account the new messages below:\n" + latest
	} else {
		prompt = "Create a short but informative summary of the conversation below between a real estate assistant and a user. " +
			"Capture all relevant personal context, preferences, and details that may help the assistant in future turns:\n\n" + latest
	}

	summary, err := e.model.Complete(ctx, "You summarize conversations accurately and concisely.", prompt)
	if err != nil {
		logger.Warn().Err(err).Msg("summarization failed, keeping previous summary")
		return
	}
	state.Summary = summary

	keep := e.cfg.Engine.MessagesAfterSummary
	if keep > 0 && len(state.Messages) > keep {
		state.Messages = state.Messages[len(state.Messages)-keep:]
	}
}
