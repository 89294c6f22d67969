package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseViewingInfoFullForm(t *testing.T) {
	data := ParseViewingInfo("Jane Doe, jane@email.com, 08012345678, 2024-07-01, 10:00, 2024-07-02, 11:00, I need wheelchair access.")

	assert.Equal(t, "Jane Doe", data["viewer_name"])
	assert.Equal(t, "jane@email.com", data["viewer_email"])
	assert.Equal(t, "08012345678", data["viewer_phone"])
	assert.Equal(t, "2024-07-01", data["preferred_date"])
	assert.Equal(t, "10:00", data["preferred_time"])
	assert.Equal(t, "2024-07-02", data["alternative_date"])
	assert.Equal(t, "11:00", data["alternative_time"])
	assert.Equal(t, "I need wheelchair access.", data["special_requirements"])
}

func TestParseViewingInfoRequiredOnly(t *testing.T) {
	data := ParseViewingInfo("Jane Doe, jane@email.com, 08012345678, 2024-07-01, 10:00")

	assert.Empty(t, missingFields(data, requiredViewingFields))
	assert.Empty(t, data["alternative_date"])
	assert.Empty(t, data["special_requirements"])
}

func TestParseViewingInfoNewlineSeparated(t *testing.T) {
	data := ParseViewingInfo("Jane Doe\njane@email.com\n08012345678\n2024-07-01\n10:00")

	assert.Equal(t, "Jane Doe", data["viewer_name"])
	assert.Equal(t, "10:00", data["preferred_time"])
}

func TestParseViewingInfoPartial(t *testing.T) {
	data := ParseViewingInfo("Jane Doe, jane@email.com")

	missing := missingFields(data, requiredViewingFields)
	assert.Equal(t, []string{"viewer_phone", "preferred_date", "preferred_time"}, missing)
}

func TestParseApplicationInfo(t *testing.T) {
	data := ParseApplicationInfo("John Doe, john.doe@gmail.com, 08012345678, 500000, employed, 30-07-2025, 12")

	assert.Equal(t, "John Doe", data["applicant_name"])
	assert.Equal(t, "john.doe@gmail.com", data["applicant_email"])
	assert.Equal(t, "08012345678", data["applicant_phone"])
	assert.Equal(t, "500000", data["monthly_income"])
	assert.Equal(t, "employed", data["employment_status"])
	assert.Equal(t, "2025-07-30", data["move_in_date"])
	assert.Equal(t, "12", data["lease_duration"])
	assert.Empty(t, missingFields(data, applicationFields))
}

func TestParseIncomeVariants(t *testing.T) {
	cases := map[string]float64{
		"500000":          500000,
		"₦500,000":        500000,
		"500,000 naira":   500000,
		"N1,200,000":      1200000,
		"ngn 750000.50":   750000.50,
		"₦2,500,000 NGN":  2500000,
	}
	for input, want := range cases {
		got, ok := ParseIncome(input)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, ok := ParseIncome("a lot")
	assert.False(t, ok)
}

func TestNormalizeMoveInDate(t *testing.T) {
	cases := map[string]string{
		"30-07-2025": "2025-07-30",
		"30/07/2025": "2025-07-30",
		"2025-07-30": "2025-07-30",
		"2025/07/30": "2025-07-30",
		"30-07-25":   "2025-07-30",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeMoveInDate(input), "input %q", input)
	}

	// Unparseable input is preserved so the re-prompt can show it.
	assert.Equal(t, "sometime soon", NormalizeMoveInDate("sometime soon"))
}

func TestParseLeaseMonths(t *testing.T) {
	months, ok := ParseLeaseMonths("12 months")
	require.True(t, ok)
	assert.Equal(t, 12, months)

	months, ok = ParseLeaseMonths("24")
	require.True(t, ok)
	assert.Equal(t, 24, months)

	_, ok = ParseLeaseMonths("a year")
	assert.False(t, ok)
}
