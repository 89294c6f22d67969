package engine

import (
	"context"
	"regexp"
	"strings"

	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

// Keyword routing runs before the LLM classifier. Slot-filling flags
// outrank everything; then booking, application, and follow-up keywords
// in that order.
var bookingKeywords = []string{
	"book a viewing", "book viewing", "book an inspection", "schedule a tour",
	"schedule viewing", "book tour", "schedule inspection", "arrange viewing",
	"arrange inspection",
}

var applicationKeywords = []string{
	"apply for", "submit application", "property application",
	"rental application", "apply to rent", "submit my application",
}

var followUpKeywords = []string{
	"its description", "tell me more", "what about the price",
	"what are the details", "yes", "how many bedrooms", "can you elaborate",
}

var greetingPhrases = map[string]bool{
	"hello": true, "hi": true, "hey": true, "how are you": true, "morning": true,
}

const intentSystemPrompt = `You are an assistant that classifies the user's intent based on their question.

Choose one of the following routes:
- structured_query: The user is asking about specific filters like price, bedrooms, location (ideal for SQL).
- semantic_lookup: The user is asking something less structured or ambiguous, best handled by vector retrieval.
- joke: The user is asking for humor.
- follow_up: The user is following up on a previous query. Use the conversation history as context to determine if the query is a follow-up from previous conversations with the user.
- orchestration: The user is asking multiple things in a single message (multi-intent), requiring the system to split and handle each part separately (e.g., property search + area insight).
- book_property_viewing: The user wants to book a property viewing, schedule a tour, or inspection.
- submit_property_application: The user wants to apply for a property or submit a rental application.

If the previous conversation history shows the agent is waiting for booking information (for example, the last AI message was a prompt asking for details like name, email, phone, date, or time), and the user's message contains personal or contact information, treat this as a continuation of the booking flow and route to book_property_viewing.

BOOKING FLOW EXAMPLES:
Q: Book a viewing for Grarrison Homes → book_property_viewing
Q: Jane Doe, jane@email.com, 08012345678, 2024-07-01, 10:00, 2024-07-02, 11:00, I need wheelchair access. → book_property_viewing
Q: Schedule an inspection for the second property → book_property_viewing

APPLICATION FLOW EXAMPLES:
Q: Apply for a property → submit_property_application
Q: Jane Doe, jane@email.com, 08012345678, 300,000, employed, 2024-07-02, 12 → submit_property_application

General Examples:
Q: I need a 3 bedroom flat in Ikeja under 1 million → structured_query
Q: I need 2 beds in Lekki → structured_query
Q: What do you know about the Sholz apartment? → semantic_lookup
Q: Places to rent affordable apartment in abuja → semantic_lookup
Q: Tell me something funny → joke
Q: What about the second listing? → follow_up
Q: Show me 2 beds in Ikeja and tell me about the safety of this area → orchestration

Answer with one of the route names only.`

const followupIntentSystemPrompt = `You are an assistant that classifies the user's intent based on their question.

Choose one of the following routes:
- structured_query: The user is asking about specific filters like price, bedrooms, location (ideal for SQL).
- semantic_lookup: The user is asking something less structured or ambiguous, best handled by vector semantic retrieval.

Examples:
Q: Give me similar 2 bedrooms apartment in Alausa area you mentioned earlier → structured_query
Q: What do you know about the Sholz apartment? → semantic_lookup
Q: What is the safety insight of the area? → semantic_lookup
Q: Which area in Ikeja can i get cheap within the range of 500000? → semantic_lookup

Answer with one of the route names only.`

const conversationalSystemPrompt = `You are a smart AI assistant. Classify whether the user's latest message requires structured processing (the user expresses intent in real estate related to listings, locations, prices, apartments or the CasaLinger platform itself) or is just conversational.

If the user's question has to do with real estate-related queries, consider it to be structured. Leave greetings, preferences, or identity questions as conversational.

If the previous conversation shows the agent is waiting for booking information (for example, the last AI message was a prompt asking for details like name, email, phone, date, or time), and the user's message contains personal or contact information, treat this as a structured (not conversational) message.

Examples:
- what do you know about casalinger → structured
- what's the relationship between landlords and tenants → structured
- Book an inspection this property → structured
- what is my name → conversational
- AI: To book a viewing, could you provide your information in this order: ...
- User: Jane Doe, jane@email.com, 08012345678, 2024-07-01, 10:00, 2024-07-02, 11:00, I need wheelchair access. → structured

Respond with one of:
- structured
- conversational`

// Info-shape patterns: a message matching any of these is treated as
// form data without consulting the model.
var bookingInfoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Za-z]+\s+[A-Za-z]+\s*,\s*[^,\s]+@[^,\s]+\s*,\s*\d{10,11}\s*,\s*\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\b[A-Za-z]+\s+[A-Za-z]+\s*,\s*[^,\s]+@[^,\s]+\s*,\s*\d{10,11}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{1,2}:\d{2}`),
}

var applicationInfoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Za-z]+\s+[A-Za-z]+\s*,\s*[^,\s]+@[^,\s]+\s*,\s*\d{10,11}\s*,\s*\d+`),
	regexp.MustCompile(`\b[A-Za-z]+\s+[A-Za-z]+\s*,\s*[^,\s]+@[^,\s]+\s*,\s*\d{10,11}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\b(employed|unemployed|self-employed|student|retired)\b`),
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func isCannedGreeting(question string) bool {
	return greetingPhrases[strings.ToLower(strings.TrimSpace(question))]
}

// classifyRoute resolves the route for a turn. Active slot-filling flows
// and keyword matches win outright; everything else goes to the model.
func (e *Engine) classifyRoute(ctx context.Context, state *conversation.State, question string) pkg.Route {
	if state.AwaitingViewingInfo {
		return pkg.RouteBookingFlow
	}
	if state.AwaitingApplicationInfo {
		return pkg.RouteApplicationFlow
	}

	lowered := strings.ToLower(question)
	if containsAny(lowered, bookingKeywords) {
		return pkg.RouteBookingFlow
	}
	if containsAny(lowered, applicationKeywords) {
		return pkg.RouteApplicationFlow
	}
	if containsAny(question, followUpKeywords) {
		return pkg.RouteFollowUp
	}

	history := conversation.FormatHistory(state.Messages, e.cfg.Engine.HistoryTurns)
	user := "Conversation history:\n" + history + "\n\nUser question: " + question
	raw, err := e.model.Complete(ctx, intentSystemPrompt, user)
	if err != nil {
		logger.Warn().Err(err).Msg("intent classification failed, falling back to direct answer")
		return pkg.RouteDirectAnswer
	}

	route := pkg.ParseRoute(strings.ToLower(strings.TrimSpace(raw)))
	if route == pkg.RouteUnknown {
		route = pkg.RouteDirectAnswer
	}
	return route
}

// classifyFollowupRoute narrows a rewritten follow-up or sub-question to
// one of the two retrieval paths.
func (e *Engine) classifyFollowupRoute(ctx context.Context, state *conversation.State, question string) pkg.Route {
	history := conversation.FormatHistory(state.Messages, e.cfg.Engine.HistoryTurns)
	user := "User question: " + question + "\nPrevious conversations:\n" + history
	raw, err := e.model.Complete(ctx, followupIntentSystemPrompt, user)
	if err != nil {
		return pkg.RouteSemanticLookup
	}
	if strings.Contains(strings.ToLower(raw), "structured_query") {
		return pkg.RouteStructuredQuery
	}
	return pkg.RouteSemanticLookup
}

// classifyConversational decides whether a turn needs the full routing
// pipeline or a direct conversational reply. A last-AI-message slot
// prompt plus info-shaped input forces structured so form data is never
// swallowed by small talk.
func (e *Engine) classifyConversational(ctx context.Context, state *conversation.State, question string) string {
	if state.AwaitingViewingInfo && matchesAny(question, bookingInfoPatterns) {
		return "structured"
	}
	if state.AwaitingApplicationInfo && matchesAny(question, applicationInfoPatterns) {
		return "structured"
	}

	history := conversation.FormatHistory(state.Messages, 8)
	system := conversationalSystemPrompt + "\n\nConversation history:\n" + history
	raw, err := e.model.Complete(ctx, system, question)
	if err != nil {
		logger.Warn().Err(err).Msg("conversational classification failed")
		return "conversational"
	}

	verdict := strings.ToLower(strings.TrimSpace(raw))
	if verdict != "structured" && verdict != "conversational" {
		verdict = "conversational"
	}
	return verdict
}

// classifyProvidingInfo distinguishes form data from a request to start
// over with a different property while a flow is mid-fill. Info-shaped
// input short-circuits; ambiguous input falls back to an A/B model call.
func (e *Engine) classifyProvidingInfo(ctx context.Context, message, listingID string, patterns []*regexp.Regexp, flow string) bool {
	if matchesAny(message, patterns) {
		return true
	}

	user := "Context: User was asked to provide " + flow + " info for property with listing id \"" + listingID + "\".\n" +
		"User response: \"" + message + "\"\n\n" +
		"Is the user:\n" +
		"A) Providing their " + flow + " information\n" +
		"B) Requesting a different property\n\n" +
		"Respond with only: A or B"
	raw, err := e.model.Complete(ctx, "You are an intent classifier. Respond with only 'A' or 'B'.", user)
	if err != nil {
		// When in doubt, treat it as form data; a re-prompt is cheaper
		// than discarding a half-filled form.
		return true
	}
	return strings.ToUpper(strings.TrimSpace(raw)) != "B"
}
