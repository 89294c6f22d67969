package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Viewing form fields in the order users are asked to supply them. The
// first five are required; alternatives and special requirements are
// optional.
var viewingFields = []string{
	"viewer_name", "viewer_email", "viewer_phone",
	"preferred_date", "preferred_time",
	"alternative_date", "alternative_time", "special_requirements",
}

var requiredViewingFields = viewingFields[:5]

// Application form fields, all required, in prompt order.
var applicationFields = []string{
	"applicant_name", "applicant_email", "applicant_phone",
	"monthly_income", "employment_status", "move_in_date", "lease_duration",
}

var (
	viewingSplitRe = regexp.MustCompile(`[\n,]`)
	leaseNumberRe  = regexp.MustCompile(`(\d+)`)
	nonNumericRe   = regexp.MustCompile(`[^\d.]`)
)

// moveInDateLayouts are the accepted input formats, tried in order.
var moveInDateLayouts = []string{
	"02-01-2006", "02/01/2006", "01-02-2006", "01/02/2006",
	"2006-01-02", "2006/01/02", "02-01-06", "02/01/06",
}

// ParseViewingInfo maps a comma- or newline-separated message onto the
// viewing fields positionally. Fields beyond the supplied values are
// left unset.
func ParseViewingInfo(message string) map[string]string {
	var parts []string
	for _, p := range viewingSplitRe.Split(message, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	data := make(map[string]string)
	for i, field := range viewingFields {
		if i < len(parts) {
			data[field] = parts[i]
		}
	}
	return data
}

// ParseApplicationInfo maps a comma-separated message onto the
// application fields positionally, normalizing income, move-in date,
// and lease duration. Values that fail normalization are kept raw so
// the re-prompt can show the user what was understood.
func ParseApplicationInfo(message string) map[string]string {
	var parts []string
	for _, p := range strings.Split(message, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	data := make(map[string]string)
	for i, field := range applicationFields {
		if i >= len(parts) {
			break
		}
		value := parts[i]
		switch field {
		case "monthly_income":
			if amount, ok := ParseIncome(value); ok {
				data[field] = strconv.FormatFloat(amount, 'f', -1, 64)
			} else {
				data[field] = value
			}
		case "move_in_date":
			data[field] = NormalizeMoveInDate(value)
		case "lease_duration":
			if months, ok := ParseLeaseMonths(value); ok {
				data[field] = strconv.Itoa(months)
			} else {
				data[field] = value
			}
		default:
			data[field] = value
		}
	}
	return data
}

// ParseIncome strips naira markers and grouping from an income string.
// "₦500,000 naira" -> 500000.
func ParseIncome(value string) (float64, bool) {
	clean := strings.ToLower(value)
	for _, marker := range []string{"naira", "₦", "ngn", "n"} {
		clean = strings.ReplaceAll(clean, marker, "")
	}
	clean = nonNumericRe.ReplaceAllString(clean, "")
	amount, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

// NormalizeMoveInDate converts any accepted date format to YYYY-MM-DD.
// Unparseable input is returned unchanged.
func NormalizeMoveInDate(value string) string {
	trimmed := strings.TrimSpace(value)
	for _, layout := range moveInDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return value
}

// ParseLeaseMonths extracts the first integer from a lease-duration
// string ("12 months" -> 12).
func ParseLeaseMonths(value string) (int, bool) {
	match := leaseNumberRe.FindString(value)
	if match == "" {
		return 0, false
	}
	months, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return months, true
}

// missingFields lists required fields not yet filled, in prompt order.
func missingFields(data map[string]string, required []string) []string {
	var missing []string
	for _, field := range required {
		if strings.TrimSpace(data[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}
