package conversation

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// FormatHistory renders the last maxTurns messages as "User:/AI:" lines
// for prompt injection.
func FormatHistory(messages []*schema.Message, maxTurns int) string {
	recent := trimTail(messages, maxTurns)

	var b strings.Builder
	for i, msg := range recent {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("User: " + msg.Content)
		case schema.Assistant:
			b.WriteString("AI: " + msg.Content)
		}
	}
	return b.String()
}

// BuildContext wraps recent history in a conversation_context block, the
// format classification prompts expect.
func BuildContext(messages []*schema.Message, maxTurns int) string {
	recent := trimTail(messages, maxTurns)

	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, msg := range recent {
		switch msg.Role {
		case schema.User:
			b.WriteString("UserMessage(" + msg.Content + ")\n")
		case schema.Assistant:
			b.WriteString("AssistantMessage(" + msg.Content + ")\n")
		}
	}
	b.WriteString("</conversation_context>")
	return b.String()
}

// RecentAssistantReplies joins the assistant messages from the last
// maxTurns messages, separated by "---" lines.
func RecentAssistantReplies(messages []*schema.Message, maxTurns int) string {
	recent := trimTail(messages, maxTurns)

	var replies []string
	for _, msg := range recent {
		if msg.Role == schema.Assistant {
			replies = append(replies, msg.Content)
		}
	}
	return strings.Join(replies, "\n---\n")
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
