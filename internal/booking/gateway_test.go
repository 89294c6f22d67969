package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casalinger_engine/pkg"
)

func TestSubmitViewingRejectsDuplicateSlot(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	req := pkg.ViewingRequest{
		UserID:     "u1",
		ListingID:  "L1",
		AgentEmail: "agent@casalinger.com",
		ViewerName: "Jane Doe",
		Date:       "2024-07-01",
		Time:       "10:00",
	}

	result, err := gateway.SubmitViewing(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "2024-07-01")

	// Same listing, date, and time from another user is a conflict.
	dup := req
	dup.UserID = "u2"
	dup.ViewerName = "John Smith"
	_, err = gateway.SubmitViewing(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrConflict))

	require.Len(t, gateway.Viewings(), 1)
}

func TestSubmitViewingAllowsDifferentSlot(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	first := pkg.ViewingRequest{UserID: "u1", ListingID: "L1", Date: "2024-07-01", Time: "10:00"}
	_, err := gateway.SubmitViewing(ctx, first)
	require.NoError(t, err)

	later := first
	later.Time = "14:00"
	_, err = gateway.SubmitViewing(ctx, later)
	require.NoError(t, err)

	otherListing := first
	otherListing.ListingID = "L2"
	_, err = gateway.SubmitViewing(ctx, otherListing)
	require.NoError(t, err)

	assert.Len(t, gateway.Viewings(), 3)
}

func TestSubmitViewingSlotKeyIsCaseInsensitive(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	_, err := gateway.SubmitViewing(ctx, pkg.ViewingRequest{ListingID: "L1", Date: "2024-07-01", Time: "10:00 AM"})
	require.NoError(t, err)

	_, err = gateway.SubmitViewing(ctx, pkg.ViewingRequest{ListingID: "L1", Date: "2024-07-01", Time: "10:00 am"})
	assert.True(t, errors.Is(err, pkg.ErrConflict))
}

func TestSubmitApplicationRejectsDuplicatePerUser(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	req := pkg.ApplicationRequest{
		UserID:     "u1",
		ListingID:  "L1",
		AgentEmail: "agent@casalinger.com",
		Name:       "John Doe",
		Email:      "john@gmail.com",
	}

	result, err := gateway.SubmitApplication(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "john@gmail.com")

	_, err = gateway.SubmitApplication(ctx, req)
	assert.True(t, errors.Is(err, pkg.ErrConflict))

	// A different user may apply for the same listing.
	other := req
	other.UserID = "u2"
	_, err = gateway.SubmitApplication(ctx, other)
	require.NoError(t, err)
}
