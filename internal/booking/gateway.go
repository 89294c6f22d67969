// Package booking hands completed viewing and application forms to the
// marketplace backend. Submissions are persisted in Redis, with SETNX
// guarding against duplicate pending requests.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

const (
	viewingKeyPrefix     = "booking:"
	applicationKeyPrefix = "application:"

	// Pending submissions are held for a week before the slot frees up.
	pendingTTL = 7 * 24 * time.Hour
)

// RedisGateway implements pkg.SubmissionGateway on Redis.
type RedisGateway struct {
	client *redis.Client
}

// NewRedisGateway builds a gateway over an existing Redis client.
func NewRedisGateway(client *redis.Client) *RedisGateway {
	return &RedisGateway{client: client}
}

// SubmitViewing records a viewing request. The same listing, date, and
// time can hold only one pending booking: a second submission returns
// pkg.ErrConflict and never overwrites the first.
func (g *RedisGateway) SubmitViewing(ctx context.Context, req pkg.ViewingRequest) (*pkg.SubmitResult, error) {
	key := viewingKey(req.ListingID, req.Date, req.Time)
	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("serialize viewing request: %w", err)
	}

	created, err := g.client.SetNX(ctx, key, string(payload), pendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("store viewing request: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("viewing slot %s %s already requested for this property: %w", req.Date, req.Time, pkg.ErrConflict)
	}

	ref := uuid.NewString()[:8]
	logger.Info().Str("listing_id", req.ListingID).Str("date", req.Date).
		Str("time", req.Time).Str("reference", ref).Msg("viewing request submitted")

	return &pkg.SubmitResult{
		Success: true,
		Message: fmt.Sprintf("Viewing request %s submitted. The agent (%s) will confirm your appointment for %s at %s.", ref, req.AgentEmail, req.Date, req.Time),
	}, nil
}

// SubmitApplication records a rental application. One pending
// application per user per listing; duplicates return pkg.ErrConflict.
func (g *RedisGateway) SubmitApplication(ctx context.Context, req pkg.ApplicationRequest) (*pkg.SubmitResult, error) {
	key := applicationKeyPrefix + req.ListingID + ":" + req.UserID
	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("serialize application: %w", err)
	}

	created, err := g.client.SetNX(ctx, key, string(payload), pendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("store application: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("a pending application already exists for this property: %w", pkg.ErrConflict)
	}

	ref := uuid.NewString()[:8]
	logger.Info().Str("listing_id", req.ListingID).Str("applicant", req.Email).
		Str("reference", ref).Msg("application submitted")

	return &pkg.SubmitResult{
		Success: true,
		Message: fmt.Sprintf("Application %s submitted for review. The agent (%s) will contact you at %s.", ref, req.AgentEmail, req.Email),
	}, nil
}

func viewingKey(listingID, date, timeOfDay string) string {
	normalize := func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return viewingKeyPrefix + normalize(listingID) + ":" + normalize(date) + ":" + normalize(timeOfDay)
}
