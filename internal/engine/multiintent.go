package engine

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

const splitSystemPrompt = "You are an expert at decomposing multi-part real estate questions into distinct sub-questions. " +
	"Return only clean, standalone questions without any formatting or comments."

const multiIntentFallback = "I couldn't process your multi-part question properly. Please try asking about one aspect at a time."

var (
	lineNumberingRe = regexp.MustCompile(`^\d+\.\s*`)
	lineQuotesRe    = regexp.MustCompile(`^["']|["']$`)
	lineCommentRe   = regexp.MustCompile(`\s*#.*$`)
)

// handleMultiIntent splits a compound question into sub-questions, runs
// each through its own retrieval path on a cloned state, and joins the
// answers.
func (e *Engine) handleMultiIntent(ctx context.Context, state *conversation.State, message string) string {
	subQuestions := e.splitQuestion(ctx, message)
	logger.Info().Int("count", len(subQuestions)).Msg("orchestrating sub-questions")

	var results []string
	for _, subQ := range subQuestions {
		if len(subQ) < 5 {
			continue
		}

		// Each sub-question runs on its own clone so partial answers
		// don't pollute the shared history mid-orchestration.
		subState := state.Clone()
		subState.AddUserMessage(subQ)

		var answer string
		if e.classifyFollowupRoute(ctx, subState, subQ) == pkg.RouteStructuredQuery {
			answer = e.handleStructuredQuery(ctx, subState, subQ)
		} else {
			answer = e.handleSemanticLookup(ctx, subState, subQ)
		}
		if strings.TrimSpace(answer) != "" {
			results = append(results, answer)
		}
	}

	if len(results) == 0 {
		return multiIntentFallback
	}
	return strings.Join(results, "\n\n")
}

// splitQuestion asks the model for standalone sub-questions, with an
// "and"-split fallback when the model output yields nothing usable.
func (e *Engine) splitQuestion(ctx context.Context, question string) []string {
	user := "Split the following user query into " + strconv.Itoa(e.cfg.Engine.MaxSubQuestions) + " distinct sub-questions. " +
		"Each sub-question should be a complete, standalone question that can be answered independently. " +
		"Return ONLY the sub-questions as a simple list, one per line. Do not include any syntax, comments, or explanations.\n\n" +
		"User query: " + question + "\n\nSub-questions:"

	var subQuestions []string
	raw, err := e.model.Complete(ctx, splitSystemPrompt, user)
	if err != nil {
		logger.Warn().Err(err).Msg("question splitting failed, using fallback")
	} else {
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			line = lineNumberingRe.ReplaceAllString(line, "")
			line = lineQuotesRe.ReplaceAllString(line, "")
			line = lineCommentRe.ReplaceAllString(line, "")
			if len(line) > 10 && strings.Contains(line, "?") {
				subQuestions = append(subQuestions, line)
			}
		}
	}

	if len(subQuestions) == 0 {
		subQuestions = fallbackSplit(question)
	}

	// The prompt asks for the limit, but the model is not trusted to
	// honor it.
	if max := e.cfg.Engine.MaxSubQuestions; max > 0 && len(subQuestions) > max {
		subQuestions = subQuestions[:max]
	}
	return subQuestions
}

// fallbackSplit splits on " and " when the model can't decompose the
// question, appending question marks so each part reads standalone.
func fallbackSplit(question string) []string {
	if !strings.Contains(strings.ToLower(question), " and ") {
		return []string{question}
	}

	var parts []string
	for _, part := range strings.Split(question, " and ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasSuffix(part, "?") {
			part += "?"
		}
		parts = append(parts, part)
	}
	return parts
}
