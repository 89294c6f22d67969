package booking

import (
	"context"
	"fmt"
	"sync"

	"casalinger_engine/pkg"
)

// MemoryGateway is an in-process SubmissionGateway with the same
// duplicate semantics as the Redis gateway. Used in tests and local
// runs without Redis.
type MemoryGateway struct {
	mu           sync.Mutex
	viewings     map[string]pkg.ViewingRequest
	applications map[string]pkg.ApplicationRequest
}

// NewMemoryGateway builds an empty in-process gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		viewings:     make(map[string]pkg.ViewingRequest),
		applications: make(map[string]pkg.ApplicationRequest),
	}
}

func (g *MemoryGateway) SubmitViewing(_ context.Context, req pkg.ViewingRequest) (*pkg.SubmitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := viewingKey(req.ListingID, req.Date, req.Time)
	if _, exists := g.viewings[key]; exists {
		return nil, fmt.Errorf("viewing slot %s %s already requested for this property: %w", req.Date, req.Time, pkg.ErrConflict)
	}
	g.viewings[key] = req
	return &pkg.SubmitResult{
		Success: true,
		Message: fmt.Sprintf("Viewing request submitted. The agent (%s) will confirm your appointment for %s at %s.", req.AgentEmail, req.Date, req.Time),
	}, nil
}

func (g *MemoryGateway) SubmitApplication(_ context.Context, req pkg.ApplicationRequest) (*pkg.SubmitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := req.ListingID + ":" + req.UserID
	if _, exists := g.applications[key]; exists {
		return nil, fmt.Errorf("a pending application already exists for this property: %w", pkg.ErrConflict)
	}
	g.applications[key] = req
	return &pkg.SubmitResult{
		Success: true,
		Message: fmt.Sprintf("Application submitted for review. The agent (%s) will contact you at %s.", req.AgentEmail, req.Email),
	}, nil
}

// Viewings returns the stored viewing requests.
func (g *MemoryGateway) Viewings() []pkg.ViewingRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]pkg.ViewingRequest, 0, len(g.viewings))
	for _, req := range g.viewings {
		out = append(out, req)
	}
	return out
}
