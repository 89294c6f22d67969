package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casalinger_engine/internal/booking"
	"casalinger_engine/internal/cache"
	"casalinger_engine/internal/config"
	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/embedding/mock"
	"casalinger_engine/internal/memory"
	"casalinger_engine/internal/query"
	"casalinger_engine/internal/rag"
	"casalinger_engine/pkg"
)

// fakeModel scripts completions by prompt markers and counts calls.
type fakeModel struct {
	calls    int
	sqlCalls int
	fn       func(system, user string) (string, error)
}

func (m *fakeModel) Complete(_ context.Context, system, user string) (string, error) {
	m.calls++
	if strings.Contains(system, "converts natural language questions into SQL") {
		m.sqlCalls++
	}
	if m.fn != nil {
		if answer, err := m.fn(system, user); answer != "" || err != nil {
			return answer, err
		}
	}
	return defaultScript(system, user)
}

func defaultScript(system, user string) (string, error) {
	switch {
	case strings.Contains(system, "Classify whether the user's latest message"):
		return "structured", nil
	case strings.Contains(system, "Respond with only 'A' or 'B'"):
		return "A", nil
	case strings.Contains(system, "Special Instructions for Booking"):
		return "What is the title, id, and agent email of Garrison Homes?", nil
	case strings.Contains(system, "converts natural language questions into SQL"):
		return `{"sql_query": "SELECT l.id, l.title, l.email FROM listings l WHERE l.title LIKE '%Garrison Homes%'"}`, nil
	case strings.Contains(system, "reformulates an original question"):
		return `{"question": "rewritten question about listings?"}`, nil
	case strings.Contains(system, "analyzing user messages to extract important information"):
		return `{"is_important": false, "formatted_memory": "", "memory_type": "semantic", "importance_score": 0.1, "tags": []}`, nil
	case strings.Contains(system, "You summarize conversations"):
		return "The user is arranging a property viewing.", nil
	case strings.Contains(system, "decomposing multi-part real estate questions"):
		return "1. Show me 2 bedroom apartments in Ikeja?\n2. What is the safety of the area in Ikeja?", nil
	case strings.Contains(system, "book_property_viewing"):
		return "structured_query", nil
	case strings.Contains(system, "vector semantic retrieval"):
		return "semantic_lookup", nil
	case strings.Contains(system, "real estate AI assistant for Nigeria"):
		return "SEM: " + user, nil
	case strings.Contains(system, "converts SQL query results"):
		return "Here is what I found.", nil
	default:
		return "ok", nil
	}
}

// fakeVectorStore keeps memories in a slice; similarity is 0.9 for
// identical content and 0.1 otherwise.
type fakeVectorStore struct {
	entries map[string][]pkg.MemoryEntry
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{entries: make(map[string][]pkg.MemoryEntry)}
}

func (s *fakeVectorStore) Search(_ context.Context, userID, q string, k int, typeFilter pkg.MemoryType) ([]pkg.ScoredMemory, error) {
	var scored []pkg.ScoredMemory
	for _, entry := range s.entries[userID] {
		if typeFilter != "" && entry.Type != typeFilter {
			continue
		}
		score := 0.1
		if entry.Content == q {
			score = 0.9
		}
		scored = append(scored, pkg.ScoredMemory{MemoryEntry: entry, Score: score})
		if len(scored) == k {
			break
		}
	}
	return scored, nil
}

func (s *fakeVectorStore) Upsert(_ context.Context, userID string, entry pkg.MemoryEntry) error {
	for i, existing := range s.entries[userID] {
		if existing.ID == entry.ID {
			s.entries[userID][i] = entry
			return nil
		}
	}
	s.entries[userID] = append(s.entries[userID], entry)
	return nil
}

func (s *fakeVectorStore) Scan(_ context.Context, userID string, typeFilter pkg.MemoryType) ([]pkg.MemoryEntry, error) {
	var out []pkg.MemoryEntry
	for _, entry := range s.entries[userID] {
		if typeFilter == "" || entry.Type == typeFilter {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *fakeVectorStore) Delete(_ context.Context, userID, id string) error {
	kept := s.entries[userID][:0]
	for _, entry := range s.entries[userID] {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	s.entries[userID] = kept
	return nil
}

type emptySource struct{}

func (emptySource) Query(context.Context, string, int) ([]rag.Passage, error) { return nil, nil }

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, string) (*pkg.QueryResult, error) {
	return nil, errors.New("no such column: l.bedroomz")
}

type testEnv struct {
	engine  *Engine
	model   *fakeModel
	store   conversation.Store
	cache   *cache.Tiered
	gateway *booking.MemoryGateway
}

func newTestEnv(t *testing.T, executor pkg.QueryExecutor) *testEnv {
	t.Helper()
	cfg := config.Default()
	model := &fakeModel{}
	embedder := mock.New()
	store := conversation.NewMemoryStore()
	tiered := cache.NewTiered(cache.NewMapKV(), embedder, cfg.Cache)
	gateway := booking.NewMemoryGateway()

	eng := New(Options{
		Store:     store,
		Cache:     tiered,
		Memories:  memory.NewManager(newFakeVectorStore(), model, cfg.Memory),
		Retriever: rag.NewBuilder(emptySource{}, emptySource{}, cfg.Retrieval),
		Generator: query.NewGenerator(model),
		Executor:  executor,
		Gateway:   gateway,
		Model:     model,
		Embedder:  embedder,
		Config:    cfg,
	})
	return &testEnv{engine: eng, model: model, store: store, cache: tiered, gateway: gateway}
}

func listingExecutor() pkg.QueryExecutor {
	return query.NewStaticExecutor(map[string]*pkg.QueryResult{
		"garrison homes": {
			Columns: []string{"id", "title", "email"},
			Rows: []map[string]any{
				{"id": "L123", "title": "Garrison Homes", "email": "agent@casalinger.com"},
			},
		},
		"from users": {
			Columns: []string{"name"},
			Rows:    []map[string]any{{"name": "Ada"}},
		},
	})
}

func TestVerbatimCacheHitSkipsModel(t *testing.T) {
	env := newTestEnv(t, listingExecutor())
	ctx := context.Background()

	require.NoError(t, env.cache.PutResponse(ctx, "u1", "show me 2 beds in Lekki", "cached answer"))

	answer, err := env.engine.HandleTurn(ctx, "u1", "show me 2 beds in Lekki")
	require.NoError(t, err)
	assert.Equal(t, "cached answer", answer)
	assert.Zero(t, env.model.calls, "cache hit must not call the model")
}

func TestViewingBookingEndToEnd(t *testing.T) {
	env := newTestEnv(t, listingExecutor())
	ctx := context.Background()

	answer, err := env.engine.HandleTurn(ctx, "u1", "Book a viewing for Garrison Homes")
	require.NoError(t, err)
	assert.Equal(t, viewingPromptMessage, answer)

	state, err := env.store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, state.AwaitingViewingInfo)
	assert.Equal(t, "L123", state.ListingID)
	assert.Equal(t, "agent@casalinger.com", state.AgentEmail)

	answer, err = env.engine.HandleTurn(ctx, "u1", "Jane Doe, jane@email.com, 08012345678, 2024-07-01, 10:00")
	require.NoError(t, err)
	assert.Contains(t, answer, "2024-07-01")

	viewings := env.gateway.Viewings()
	require.Len(t, viewings, 1)
	req := viewings[0]
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, "L123", req.ListingID)
	assert.Equal(t, "agent@casalinger.com", req.AgentEmail)
	assert.Equal(t, "Jane Doe", req.ViewerName)
	assert.Equal(t, "jane@email.com", req.ViewerEmail)
	assert.Equal(t, "08012345678", req.ViewerPhone)
	assert.Equal(t, "2024-07-01", req.Date)
	assert.Equal(t, "10:00", req.Time)
	assert.Empty(t, req.AltDate)
	assert.Empty(t, req.Requirements)

	state, err = env.store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, state.AwaitingViewingInfo)
	assert.Empty(t, state.ListingID)
}

func TestViewingBookingConflictPreservesForm(t *testing.T) {
	env := newTestEnv(t, listingExecutor())
	ctx := context.Background()

	_, err := env.engine.HandleTurn(ctx, "u1", "Book a viewing for Garrison Homes")
	require.NoError(t, err)
	_, err = env.engine.HandleTurn(ctx, "u1", "Jane Doe, jane@email.com, 08012345678, 2024-07-01, 10:00")
	require.NoError(t, err)

	// A second user requests the same slot on the same listing.
	_, err = env.engine.HandleTurn(ctx, "u2", "Book a viewing for Garrison Homes")
	require.NoError(t, err)
	answer, err := env.engine.HandleTurn(ctx, "u2", "John Smith, john@email.com, 08087654321, 2024-07-01, 10:00")
	require.NoError(t, err)
	assert.Contains(t, answer, "already requested")

	// The form survives so the user can pick another slot.
	state, err := env.store.Load(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, state.AwaitingViewingInfo)
	assert.Equal(t, "John Smith", state.ViewingData["viewer_name"])
	require.Len(t, env.gateway.Viewings(), 1)
}

func TestIncompleteViewingFormReprompts(t *testing.T) {
	env := newTestEnv(t, listingExecutor())
	ctx := context.Background()

	_, err := env.engine.HandleTurn(ctx, "u1", "Book a viewing for Garrison Homes")
	require.NoError(t, err)

	answer, err := env.engine.HandleTurn(ctx, "u1", "Jane Doe, jane@email.com")
	require.NoError(t, err)
	assert.Equal(t, viewingPromptMessage, answer)

	state, err := env.store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, state.AwaitingViewingInfo)
	assert.Equal(t, "Jane Doe", state.ViewingData["viewer_name"])
	assert.Empty(t, env.gateway.Viewings())
}

func TestStructuredQueryRetriesThenGivesUp(t *testing.T) {
	env := newTestEnv(t, failingExecutor{})
	ctx := context.Background()

	answer, err := env.engine.HandleTurn(ctx, "u1", "Show me 2 bedroom apartments in Ikeja")
	require.NoError(t, err)
	assert.Equal(t, maxAttemptsMessage, answer)
	assert.Equal(t, 3, env.model.sqlCalls, "generation must stop at the attempt cap")
}

func TestMultiIntentJoinsSubAnswers(t *testing.T) {
	env := newTestEnv(t, listingExecutor())
	env.model.fn = func(system, user string) (string, error) {
		if strings.Contains(system, "book_property_viewing") {
			return "orchestration", nil
		}
		return "", nil
	}
	ctx := context.Background()

	answer, err := env.engine.HandleTurn(ctx, "u1", "Show me 2 beds in Ikeja and tell me about the safety of this area")
	require.NoError(t, err)

	parts := strings.Split(answer, "\n\n")
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "Ikeja")
	assert.Contains(t, parts[1], "safety")
}

func TestMultiIntentCapsSubQuestions(t *testing.T) {
	env := newTestEnv(t, listingExecutor())
	env.model.fn = func(system, user string) (string, error) {
		if strings.Contains(system, "book_property_viewing") {
			return "orchestration", nil
		}
		// The splitter was asked for two sub-questions but returns three.
		if strings.Contains(system, "decomposing multi-part real estate questions") {
			return "1. Show me 2 bedroom apartments in Ikeja?\n" +
				"2. What is the safety of the area in Ikeja?\n" +
				"3. How fast is the internet in Ikeja?", nil
		}
		return "", nil
	}
	ctx := context.Background()

	answer, err := env.engine.HandleTurn(ctx, "u1", "Show me 2 beds in Ikeja and tell me about safety and internet")
	require.NoError(t, err)

	parts := strings.Split(answer, "\n\n")
	require.Len(t, parts, 2, "answers must stop at the sub-question cap")
	assert.NotContains(t, answer, "internet")
}

func TestIdentityFallbackNeverFailsTurn(t *testing.T) {
	env := newTestEnv(t, failingExecutor{})
	ctx := context.Background()

	_, err := env.engine.HandleTurn(ctx, "ghost", "hello")
	require.NoError(t, err)

	state, err := env.store.Load(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "User not found", state.CurrentUser)
}
