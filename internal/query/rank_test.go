package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPreferencesFromUserText(t *testing.T) {
	prefs := ExtractPreferences("I need 2 bedrooms with a swimming pool in Lekki", "", "")

	assert.Contains(t, prefs, "2 bedrooms")
	assert.Contains(t, prefs, "swimming pool")
	assert.Contains(t, prefs, "lekki")
}

func TestExtractPreferencesFromStructuredSummary(t *testing.T) {
	summary := "**Location Preference**: Lekki and Ikeja\n**Apartment Type**: duplex\n**Budget**: unknown"
	prefs := ExtractPreferences("", summary, "")

	assert.Contains(t, prefs, "lekki")
	assert.Contains(t, prefs, "ikeja")
	assert.Contains(t, prefs, "duplex")
	assert.NotContains(t, prefs, "unknown")
}

func TestExtractPreferencesIgnoresAssistantSummaryLines(t *testing.T) {
	// Free-text summary lines only count when they describe the user;
	// the assistant mentioning Ikorodu must not become a preference.
	summary := "The assistant listed several options in Ikorodu."
	prefs := ExtractPreferences("", summary, "")
	assert.NotContains(t, prefs, "ikorodu")

	summary = "The user is looking for apartments in Ikorodu."
	prefs = ExtractPreferences("", summary, "")
	assert.Contains(t, prefs, "ikorodu")
}

func TestExtractPreferencesFromMemoryContext(t *testing.T) {
	prefs := ExtractPreferences("", "", "- Prefers a gym and parking\n- Budget around ₦2,000,000")
	assert.Contains(t, prefs, "gym")
	assert.Contains(t, prefs, "parking")
	assert.Contains(t, prefs, "2,000,000")
}

func TestScoreListing(t *testing.T) {
	listing := map[string]any{
		"title":             "Lekki Gardens Duplex",
		"amenities":         "Swimming Pool, Gym, 24h Security",
		"interior_features": "Modern Kitchen",
	}

	assert.Equal(t, 0, ScoreListing(listing, nil))
	assert.Equal(t, 2, ScoreListing(listing, []string{"swimming pool", "gym"}))
	// "lekki" hits the title, "modern" the interior features.
	assert.Equal(t, 2, ScoreListing(listing, []string{"lekki", "modern"}))
}

func TestRankListingsOrdersByScoreAndCaps(t *testing.T) {
	plain := map[string]any{"id": "a", "amenities": "Parking"}
	match := map[string]any{"id": "b", "amenities": "Swimming Pool, Gym"}
	partial := map[string]any{"id": "c", "amenities": "Gym"}

	ranked := RankListings([]map[string]any{plain, match, partial}, []string{"swimming pool", "gym"}, 2)

	assert.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0]["id"])
	assert.Equal(t, "c", ranked[1]["id"])
}

func TestRankListingsStableWithoutPreferences(t *testing.T) {
	rows := []map[string]any{{"id": "x"}, {"id": "y"}, {"id": "z"}}
	ranked := RankListings(rows, nil, 10)

	assert.Equal(t, "x", ranked[0]["id"])
	assert.Equal(t, "y", ranked[1]["id"])
	assert.Equal(t, "z", ranked[2]["id"])
}
