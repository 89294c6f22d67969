package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"casalinger_engine/pkg"
)

func TestKeywordPrecedence(t *testing.T) {
	// Booking keywords outrank application and follow-up keywords.
	assert.True(t, containsAny("please book a viewing for garrison homes", bookingKeywords))
	assert.True(t, containsAny("i want to apply for the flat", applicationKeywords))
	assert.True(t, containsAny("tell me more about it", followUpKeywords))

	// "schedule a tour" is booking, not application.
	msg := "schedule a tour so i can apply for it later"
	assert.True(t, containsAny(msg, bookingKeywords))
}

func TestParseRouteRoundTrip(t *testing.T) {
	for _, route := range []pkg.Route{
		pkg.RouteStructuredQuery, pkg.RouteSemanticLookup, pkg.RouteOrchestration,
		pkg.RouteJoke, pkg.RouteFollowUp, pkg.RouteBookingFlow,
		pkg.RouteApplicationFlow, pkg.RouteDirectAnswer,
	} {
		assert.Equal(t, route, pkg.ParseRoute(route.String()))
	}
	assert.Equal(t, pkg.RouteUnknown, pkg.ParseRoute("nonsense"))
}

func TestBookingInfoPatterns(t *testing.T) {
	assert.True(t, matchesAny("Jane Doe, jane@email.com, 08012345678, 2024-07-01, 10:00", bookingInfoPatterns))
	assert.True(t, matchesAny("Jane Doe, jane@email.com, 08012345678", bookingInfoPatterns))
	assert.True(t, matchesAny("how about 2024-07-01 instead", bookingInfoPatterns))
	assert.True(t, matchesAny("10:30 works for me", bookingInfoPatterns))
	assert.False(t, matchesAny("actually book the other property instead", bookingInfoPatterns))
}

func TestApplicationInfoPatterns(t *testing.T) {
	assert.True(t, matchesAny("John Doe, john@gmail.com, 08012345678, 500000", applicationInfoPatterns))
	assert.True(t, matchesAny("I am self-employed", applicationInfoPatterns))
	assert.False(t, matchesAny("apply for the duplex in Lekki instead", applicationInfoPatterns))
}

func TestCannedGreetings(t *testing.T) {
	assert.True(t, isCannedGreeting("hello"))
	assert.True(t, isCannedGreeting("  Hi "))
	assert.True(t, isCannedGreeting("How are you"))
	assert.False(t, isCannedGreeting("hello, show me 2 beds in Lekki"))
}
