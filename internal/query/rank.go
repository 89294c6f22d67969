package query

import (
	"regexp"
	"sort"
	"strings"
)

// Keyword lists the preference extractor scans for. Kept deliberately
// broad: a false positive only nudges ranking, it never filters rows.
var featureKeywords = []string{
	"swimming pool", "gym", "parking", "security", "air conditioner", "modern",
	"kitchen filters", "lounge", "cinema", "balcony", "garden", "1 bedroom",
	"2 bedrooms", "3 bedrooms", "4 bedrooms", "bedroom", "bathroom", "duplex",
	"self contained", "apartment", "studio", "penthouse",
}

var locationKeywords = []string{
	"lagos", "ogun", "maryland", "phase 1", "chevron", "phase 2", "phase 3",
	"abuja", "ikeja", "ikorodu", "lekki", "agric", "idimu", "epe", "eti-osa",
}

var (
	priceRe       = regexp.MustCompile(`₦?(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)`)
	summaryKeyRe  = regexp.MustCompile(`\*\*(.+?)\*\*:\s*(.+)`)
	summaryKeys   = map[string]bool{
		"location preference": true, "apartment type": true,
		"number of bedrooms": true, "budget": true,
		"preferred amenities": true, "lifestyle preferences": true,
		"leasing terms": true,
	}
	summarySplitRe = regexp.MustCompile(`,|and|;|\.|\s+but\s+`)
)

// rankedFields are the listing columns preference hits are counted in.
var rankedFields = []string{"amenities", "interior_features", "exterior_features", "title", "description"}

// ExtractPreferences mines user text, the conversation summary, and the
// memory context for preference keywords, prices, and locations.
func ExtractPreferences(userText, summary, memoryContext string) []string {
	prefs := make(map[string]bool)

	// Structured summary lines like "**Budget**: ₦2M".
	for _, line := range strings.Split(summary, "\n") {
		match := summaryKeyRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(match[1]))
		if !summaryKeys[key] {
			continue
		}
		for _, part := range summarySplitRe.Split(strings.ToLower(match[2]), -1) {
			part = strings.TrimSpace(part)
			if part != "" && part != "unknown" && part != "not explicitly stated" {
				prefs[part] = true
			}
		}
	}

	// Unstructured summary lines only count when they describe the user.
	var userSummaryLines []string
	for _, line := range strings.Split(summary, "\n") {
		lowered := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(lowered, "the user") || strings.HasPrefix(lowered, "user") {
			userSummaryLines = append(userSummaryLines, line)
		}
	}

	allText := strings.ToLower(strings.Join([]string{userText, strings.Join(userSummaryLines, " "), memoryContext}, " "))

	for _, kw := range featureKeywords {
		if strings.Contains(allText, kw) {
			prefs[kw] = true
		}
	}
	for _, match := range priceRe.FindAllStringSubmatch(allText, -1) {
		prefs[match[1]] = true
	}
	for _, loc := range locationKeywords {
		if strings.Contains(allText, loc) {
			prefs[loc] = true
		}
	}

	result := make([]string, 0, len(prefs))
	for p := range prefs {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// ScoreListing counts preference hits across the ranked fields.
func ScoreListing(listing map[string]any, preferences []string) int {
	score := 0
	for _, pref := range preferences {
		lowered := strings.ToLower(pref)
		for _, field := range rankedFields {
			if value, ok := listing[field]; ok && value != nil {
				if strings.Contains(strings.ToLower(toString(value)), lowered) {
					score++
				}
			}
		}
	}
	return score
}

// RankListings sorts listings by preference score, best first, and keeps
// at most limit rows. The sort is stable so equally scored rows keep the
// executor's (randomized) order.
func RankListings(listings []map[string]any, preferences []string, limit int) []map[string]any {
	ranked := make([]map[string]any, len(listings))
	copy(ranked, listings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ScoreListing(ranked[i], preferences) > ScoreListing(ranked[j], preferences)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
