package conversation

import (
	"github.com/cloudwego/eino/schema"

	"casalinger_engine/pkg"
)

// State is the unit of work for one turn, persisted per user between
// turns. Transient values computed during a turn (query rows, SQL error
// flags) live in the orchestrator, not here.
type State struct {
	Messages      []*schema.Message `json:"messages"`
	Summary       string            `json:"summary,omitempty"`
	MemoryContext string            `json:"memory_context,omitempty"`

	Intent      pkg.Route `json:"intent"`
	IntentRoute string    `json:"intent_route,omitempty"` // "structured" or "conversational"
	Attempts    int       `json:"attempts"`

	AwaitingViewingInfo     bool              `json:"awaiting_viewing_info"`
	AwaitingApplicationInfo bool              `json:"awaiting_application_info"`
	ViewingData             map[string]string `json:"viewing_data,omitempty"`
	ApplicationData         map[string]string `json:"application_data,omitempty"`
	ListingID               string            `json:"listing_id,omitempty"`
	AgentEmail              string            `json:"agent_email,omitempty"`

	CurrentUser   string `json:"current_user,omitempty"`
	CurrentUserID string `json:"current_user_id,omitempty"`

	// TurnCount drives periodic memory maintenance.
	TurnCount int `json:"turn_count"`
}

// NewState returns an empty state for a first-time user.
func NewState(userID string) *State {
	return &State{
		Messages:      []*schema.Message{},
		CurrentUserID: userID,
	}
}

// AddUserMessage appends a user turn.
func (s *State) AddUserMessage(text string) {
	s.Messages = append(s.Messages, schema.UserMessage(text))
}

// AddAssistantMessage appends an assistant turn.
func (s *State) AddAssistantMessage(text string) {
	s.Messages = append(s.Messages, schema.AssistantMessage(text, nil))
}

// LatestUserMessage returns the most recent user message, or "" if none.
func (s *State) LatestUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == schema.User {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the most recent assistant message, or "".
func (s *State) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == schema.Assistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// ReplaceLatestUserMessage rewrites the most recent user message in
// place. Used by follow-up rewriting and query regeneration.
func (s *State) ReplaceLatestUserMessage(text string) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == schema.User {
			s.Messages[i] = schema.UserMessage(text)
			return
		}
	}
}

// ResetViewingFlow clears booking slot-filling progress.
func (s *State) ResetViewingFlow() {
	s.AwaitingViewingInfo = false
	s.ViewingData = map[string]string{}
	s.ListingID = ""
	s.AgentEmail = ""
}

// ResetApplicationFlow clears application slot-filling progress.
func (s *State) ResetApplicationFlow() {
	s.AwaitingApplicationInfo = false
	s.ApplicationData = map[string]string{}
	s.ListingID = ""
	s.AgentEmail = ""
}

// Clone copies the state for an independent sub-dispatch. Messages are
// copied shallowly into a fresh slice so appends don't leak back.
func (s *State) Clone() *State {
	dup := *s
	dup.Messages = append([]*schema.Message{}, s.Messages...)
	dup.ViewingData = cloneMap(s.ViewingData)
	dup.ApplicationData = cloneMap(s.ApplicationData)
	return &dup
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	dup := make(map[string]string, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
