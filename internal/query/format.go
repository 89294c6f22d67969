package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"casalinger_engine/pkg"
)

// Outcome is one SQL execution round: the rendered result text, the raw
// rows for downstream ranking, and whether execution failed.
type Outcome struct {
	Result string
	Rows   []map[string]any
	Failed bool
}

// Execute runs the query and renders the outcome. SELECTs with a single
// scalar render as a naira amount; row sets are ranked by the user's
// preferences and capped at ten; writes report plain success. Execution
// errors come back in the outcome so the caller can retry with a
// rewritten question instead of failing the turn.
func Execute(ctx context.Context, executor pkg.QueryExecutor, sql string, preferences []string) Outcome {
	result, err := executor.Execute(ctx, strings.TrimSpace(sql))
	if err != nil {
		return Outcome{Result: "Error executing SQL query: " + err.Error(), Failed: true}
	}

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(sql)), "select") {
		return Outcome{Result: "The action has been successfully completed."}
	}

	if len(result.Rows) == 0 {
		return Outcome{Result: "No results found."}
	}

	// Single scalar, e.g. AVG(price).
	if len(result.Columns) == 1 && len(result.Rows) == 1 {
		value := result.Rows[0][result.Columns[0]]
		if amount, ok := toFloat(value); ok {
			return Outcome{Result: "The result is ₦" + formatAmount(amount), Rows: result.Rows}
		}
		if value == nil {
			return Outcome{Result: "The result is No data", Rows: result.Rows}
		}
		return Outcome{Result: "The result is " + toString(value), Rows: result.Rows}
	}

	ranked := RankListings(result.Rows, preferences, 10)
	return Outcome{Result: FormatRows(result.Columns, ranked), Rows: ranked}
}

// FormatRows renders listing rows as labeled blocks. URLs become
// markdown links instead of raw columns.
func FormatRows(columns []string, rows []map[string]any) string {
	blocks := make([]string, 0, len(rows))
	for _, row := range rows {
		var parts []string
		for _, col := range columns {
			value, ok := row[col]
			if !ok || value == nil || col == "url" {
				continue
			}
			parts = append(parts, fmt.Sprintf("**%s:** %s", titleCase(col), toString(value)))
		}
		if url, ok := row["url"]; ok && url != nil {
			parts = append(parts, fmt.Sprintf("[View listing](%s)", toString(url)))
		}
		blocks = append(blocks, strings.Join(parts, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// titleCase turns a snake_case column name into a display label.
func titleCase(column string) string {
	words := strings.Split(column, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// formatAmount renders a float with thousands separators and two
// decimals, e.g. 1234567.5 -> "1,234,567.50".
func formatAmount(amount float64) string {
	formatted := strconv.FormatFloat(amount, 'f', 2, 64)
	dot := strings.Index(formatted, ".")
	whole, frac := formatted[:dot], formatted[dot:]

	negative := strings.HasPrefix(whole, "-")
	if negative {
		whole = whole[1:]
	}

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}

	result := grouped.String() + frac
	if negative {
		result = "-" + result
	}
	return result
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// Avoid scientific notation for prices and IDs.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
