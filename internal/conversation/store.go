package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const conversationPrefix = "conversation:"

// Store persists conversation state between turns, keyed by user id.
// Injected into the orchestrator so the backend is swappable in tests.
type Store interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, userID string, state *State) error
}

// RedisStore keeps conversation state in Redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) key(userID string) string {
	return conversationPrefix + userID
}

// Load returns the persisted state for a user, or a fresh state if none
// exists. Reading refreshes the TTL so active conversations stay warm.
func (r *RedisStore) Load(ctx context.Context, userID string) (*State, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return NewState(userID), nil
		}
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}

	var state State
	if err := sonic.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	state.CurrentUserID = userID

	r.client.Expire(ctx, r.key(userID), r.ttl)
	return &state, nil
}

// Save writes the state back with a full TTL.
func (r *RedisStore) Save(ctx context.Context, userID string, state *State) error {
	data, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and single-node demos.
type MemoryStore struct {
	states map[string]*State
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (*State, error) {
	if st, ok := m.states[userID]; ok {
		return st.Clone(), nil
	}
	return NewState(userID), nil
}

func (m *MemoryStore) Save(_ context.Context, userID string, state *State) error {
	m.states[userID] = state.Clone()
	return nil
}
