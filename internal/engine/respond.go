package engine

import (
	"context"
	"strings"

	"casalinger_engine/internal/cache"
	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
)

const personaSystemPrompt = `You are Moji, a helpful and engaging real estate AI assistant for the CasaLinger platform.`

const personalizationSystemPrompt = `You are refining a real estate assistant's response using what is known about the user.

Known facts about the user:
{{user_memories}}

Original response:
{{original_response}}

Rewrite the response so it naturally reflects the user's preferences and interaction style where relevant. Do not mention that you are using stored memories. Keep the meaning and length of the original. If no facts apply, return the original response unchanged.`

// respondGreeting answers canned greetings in the Moji persona.
func (e *Engine) respondGreeting(ctx context.Context, state *conversation.State, message string) string {
	system := personaSystemPrompt + ` Greet the user '` + state.CurrentUser + `' by name in your response. If the user's question isn't related to the listing properties, politely ask how you can assist the user.
- Example: Hello, Azeez! I'm Moji, your CasaLinger assistant. How can I assist you today? If you have any questions or need help finding listing properties, feel free to ask!`

	var user string
	if isCannedGreeting(message) {
		user = "Greet " + state.CurrentUser + " with a friendly welcome."
	} else {
		user = "The user '" + state.CurrentUser + "' said '" + message + "'. Respond politely, asking how you can help. Keep your response concise and short."
	}

	answer, err := e.model.Complete(ctx, system, user)
	if err != nil {
		logger.Warn().Err(err).Msg("greeting generation failed")
		return "Hello! I'm Moji, your CasaLinger assistant. How can I help you find a property today?"
	}
	return answer
}

// respondJoke deflects off-topic humor requests playfully while
// steering back to listings.
func (e *Engine) respondJoke(ctx context.Context) string {
	system := "You are a charming and funny assistant who responds in a playful manner."
	user := "I can not help with that, but wouldn't you like to know about the landscape of our listed properties in your area? Create a humorous response while being helpful. Make it short and concise!"

	answer, err := e.model.Complete(ctx, system, user)
	if err != nil {
		logger.Warn().Err(err).Msg("joke generation failed")
		return "I'd tell you a real estate joke, but it's still under construction! What kind of property can I help you find?"
	}
	return answer
}

// respondConversational answers small talk with a two-stage reply: a
// persona response grounded in summary and history, then a
// personalization pass over the user's stored preferences.
func (e *Engine) respondConversational(ctx context.Context, state *conversation.State, message string, retrieval *cache.MemoryRetrieval) string {
	parts := []string{
		personaSystemPrompt,
		"Respond using friendly, natural language.",
		"Use memory and summary naturally to personalize your response.",
		"If the user's name is present in the memory context, use it! If the name does not exist in the memory context then use " + state.CurrentUser + ".",
	}
	if state.MemoryContext != "" {
		parts = append(parts, "Here are relevant facts and preferences about the user:\n"+state.MemoryContext)
	}
	if state.Summary != "" {
		parts = append(parts, "Summary of the conversation so far:\n"+state.Summary)
	}
	parts = append(parts, "Conversation so far:\n"+conversation.FormatHistory(state.Messages, 8))
	parts = append(parts, `If the user greets you, politely ask how you can assist them with real estate. Example:
Q: hey
AI: Hello, Azeez! I'm Moji, your CasaLinger assistant. How can I assist you today? If you have any questions or need help finding properties, feel free to ask!`)

	initial, err := e.model.Complete(ctx, strings.Join(parts, "\n\n"), message)
	if err != nil {
		logger.Warn().Err(err).Msg("conversational response failed")
		return "I'm here to help with anything real estate related. What can I do for you?"
	}

	memories := formatUserMemories(retrieval)
	if memories == "" {
		return initial
	}

	system := strings.NewReplacer(
		"{{user_memories}}", memories,
		"{{original_response}}", initial,
	).Replace(personalizationSystemPrompt)

	personalized, err := e.model.Complete(ctx, system, "Personalize this response")
	if err != nil || strings.TrimSpace(personalized) == "" {
		return initial
	}
	return personalized
}

// formatUserMemories renders semantic and procedural memories as the
// labeled lines the personalization prompt expects.
func formatUserMemories(retrieval *cache.MemoryRetrieval) string {
	if retrieval == nil {
		return ""
	}
	var lines []string
	for _, m := range retrieval.Semantic {
		lines = append(lines, "Preference: "+m.Content)
	}
	for _, m := range retrieval.Procedural {
		lines = append(lines, "Interaction style: "+m.Content)
	}
	return strings.Join(lines, "\n")
}
