package pkg

import (
	"context"
	"errors"
	"time"
)

// Core domain types shared across the engine, plus the collaborator
// contracts the engine consumes. Everything here is transport-agnostic:
// concrete implementations live under internal/.

// ====================== Memory ======================

// MemoryType classifies a remembered fact about a user.
type MemoryType string

const (
	// MemorySemantic holds stable facts and preferences ("prefers Lekki").
	MemorySemantic MemoryType = "semantic"
	// MemoryEpisodic holds personal anecdotes tied to specific events.
	MemoryEpisodic MemoryType = "episodic"
	// MemoryProcedural holds interaction-style patterns ("likes short answers").
	MemoryProcedural MemoryType = "procedural"
)

// MemoryTypes lists all memory types in canonical order.
var MemoryTypes = []MemoryType{MemorySemantic, MemoryEpisodic, MemoryProcedural}

// MemoryEntry is one stored memory owned by the Memory Manager.
type MemoryEntry struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	Type        MemoryType        `json:"memory_type"`
	Importance  float64           `json:"importance_score"`
	Timestamp   time.Time         `json:"timestamp"`
	AccessCount int               `json:"access_count"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ScoredMemory pairs a memory with the similarity score a search assigned it.
type ScoredMemory struct {
	MemoryEntry
	Score float64 `json:"score"`
}

// ====================== Routing ======================

// Route is the closed set of branches a turn can be dispatched to.
type Route int

const (
	RouteUnknown Route = iota
	RouteStructuredQuery
	RouteSemanticLookup
	RouteOrchestration
	RouteJoke
	RouteFollowUp
	RouteBookingFlow
	RouteApplicationFlow
	RouteDirectAnswer
)

var routeNames = map[Route]string{
	RouteUnknown:         "unknown",
	RouteStructuredQuery: "structured_query",
	RouteSemanticLookup:  "semantic_lookup",
	RouteOrchestration:   "orchestration",
	RouteJoke:            "joke",
	RouteFollowUp:        "follow_up",
	RouteBookingFlow:     "book_property_viewing",
	RouteApplicationFlow: "submit_property_application",
	RouteDirectAnswer:    "direct_answer",
}

func (r Route) String() string {
	if name, ok := routeNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRoute maps a classifier label to a Route. Unrecognized labels map
// to RouteUnknown so the caller can apply its fallback rule.
func ParseRoute(label string) Route {
	for r, name := range routeNames {
		if name == label {
			return r
		}
	}
	return RouteUnknown
}

// ====================== Query execution ======================

// QueryResult holds the outcome of a relational query.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// QueryExecutor runs generated queries against the listings schema.
// Read queries return rows; writes return an empty result on success.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*QueryResult, error)
}

// ====================== Vector store / embeddings ======================

// VectorStore persists memory records per user with similarity search.
// TypeFilter of "" means all types.
type VectorStore interface {
	Search(ctx context.Context, userID, query string, k int, typeFilter MemoryType) ([]ScoredMemory, error)
	Upsert(ctx context.Context, userID string, entry MemoryEntry) error
	Scan(ctx context.Context, userID string, typeFilter MemoryType) ([]MemoryEntry, error)
	Delete(ctx context.Context, userID, id string) error
}

// Embedder maps text to a fixed-size vector, deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ====================== Language model ======================

// LanguageModel produces a completion for a system/user prompt pair.
type LanguageModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ====================== Key-value cache ======================

// KV is the raw TTL-bound key-value contract the cache tiers build on.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ====================== Submissions ======================

// ErrConflict reports a duplicate pending booking for the same
// listing/date/time. It must never be silently overwritten.
var ErrConflict = errors.New("duplicate pending booking")

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("not found")

// ViewingRequest is a completed viewing-booking form.
type ViewingRequest struct {
	UserID       string `json:"user_id"`
	ListingID    string `json:"listing_id"`
	AgentEmail   string `json:"agent_email,omitempty"`
	ViewerName   string `json:"viewer_name"`
	ViewerEmail  string `json:"viewer_email"`
	ViewerPhone  string `json:"viewer_phone"`
	Date         string `json:"preferred_date"`
	Time         string `json:"preferred_time"`
	AltDate      string `json:"alternative_date,omitempty"`
	AltTime      string `json:"alternative_time,omitempty"`
	Requirements string `json:"special_requirements,omitempty"`
}

// ApplicationRequest is a completed rental-application form.
type ApplicationRequest struct {
	UserID        string  `json:"user_id"`
	ListingID     string  `json:"listing_id"`
	AgentEmail    string  `json:"agent_email,omitempty"`
	Name          string  `json:"applicant_name"`
	Email         string  `json:"applicant_email"`
	Phone         string  `json:"applicant_phone"`
	MonthlyIncome float64 `json:"monthly_income"`
	Employment    string  `json:"employment_status"`
	MoveInDate    string  `json:"move_in_date"`
	LeaseMonths   int     `json:"lease_duration"`
}

// SubmitResult is the outcome of a booking or application submission.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubmissionGateway hands completed forms to the marketplace backend.
// Both methods reject duplicate pending bookings with ErrConflict.
type SubmissionGateway interface {
	SubmitViewing(ctx context.Context, req ViewingRequest) (*SubmitResult, error)
	SubmitApplication(ctx context.Context, req ApplicationRequest) (*SubmitResult, error)
}
