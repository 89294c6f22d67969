// Package query turns natural-language questions into SQL over the
// listings schema, executes them through an injected executor, and
// renders results. The generator is schema-aware but storage-agnostic:
// the executor owns the actual database.
package query

import (
	"context"
	"fmt"
	"strings"

	"casalinger_engine/internal/llm"
	"casalinger_engine/internal/logger"
	"casalinger_engine/pkg"
)

const schemaDescription = `Table listings: id, title, description, bedrooms, bathrooms, price, state, city, area, amenities, interior_features, exterior_features, url, email, created_at
Table units: id, listing_id, bedrooms, bathrooms, price_min, price_max
Table interactions: id, user_id, listing_id, interaction_type, created_at, title, state, city, area
Table users: id, name, email`

const sqlSystemPrompt = `You are an assistant that converts natural language questions into SQL queries based on the following schema:

` + schemaDescription + `

### Handling Simple and Complex Properties
- The listings table contains general property information for both individual properties and property complexes.
- The units table contains details for individual units within a complex property. Each unit has its own bedrooms, bathrooms, and price fields, and is linked to a listing via units.listing_id = listings.id.
- When a user asks for properties with a specific number of bedrooms, bathrooms, or price, always check both the listings and units tables:
    - Use a LEFT JOIN between listings and units on listings.id = units.listing_id.
    - Filter for the requested criteria (e.g., bedrooms) in either table: (listings.bedrooms = X OR units.bedrooms = X).
    - This ensures you return both individual properties and complex properties with matching units.
- If both listings and units have the information, prefer the more specific value from units.

- For property search queries, always add ORDER BY RANDOM() LIMIT 10 to the SQL unless the user requests all results or a specific number. This ensures a random sample of up to 10 listings is returned each time, not always the same listings.

Example:
User: "I need duplex apartment at ikorodu." SQL query: SELECT l.*, u.bedrooms, u.bathrooms, u.price_min, u.price_max FROM listings l LEFT JOIN units u ON l.id = u.listing_id WHERE l.city='Ikorodu' AND l.title LIKE '%duplex%' ORDER BY RANDOM() LIMIT 10
Example 2: "What are the details of the properties available for rent with 2 bedrooms at a price of N600,000.00 in Agric, Lagos?" SQL query: SELECT l.description, u.bedrooms, u.bathrooms, u.price_min, u.price_max FROM listings l LEFT JOIN units u ON l.id = u.listing_id WHERE (l.bedrooms=2 OR u.bedrooms=2) AND (l.price=600000.00 OR u.price_min=600000.00 OR u.price_max=600000.00) AND l.state='Lagos' AND l.area='Agric' ORDER BY RANDOM() LIMIT 10

IMPORTANT LOCATION MAPPING RULES:
- If a location matches one of these states: [Lagos, Ogun, Abuja], ALWAYS use l.state='StateName' in the SQL.
- If a location matches one of these cities: [Ikeja, Ikorodu, Lekki, Epe, Eti-Osa], ALWAYS use l.city='CityName' in the SQL.
- If a location does NOT match any state or city, use l.area='AreaName'. e.g. if the user says 'Ebute' for area, use l.area='Ebute'.
- For example: if the user says 'Epe', use l.city='Epe'. If the user says 'Ikorodu', use l.city='Ikorodu'.

- For date filtering, use SQLite syntax. For example, to get listings posted in the last X days, use:
  created_at >= date('now', '-X days')
  Example: "Show me listings posted in the last 25 days" ->
  SELECT * FROM listings WHERE created_at >= date('now', '-25 days')

- Use the title column with LIKE instead of = for better matches when handling follow-ups (e.g., price, description, bathrooms).
- If filtering by price, ensure it is properly formatted as a float.
- If filtering by bedrooms, cast it as an integer.
- If the user asks to sort by popularity, use the interactions table to count interactions per listing. The interaction_type column is either 'view' or 'saved'.

### Property Features
When users ask about property features (e.g., swimming pool, gym, parking, security), search across these three columns:
- amenities - general amenities like swimming pool, gym, parking, security, etc.
- interior_features - interior features like air conditioning, modern kitchen, etc.
- exterior_features - exterior features like garden, balcony, etc.

Use LIKE with %feature% to search for features in these text columns.

Example 4:
User: "Let's explore apartments with swimming pool in Lekki"
SQL Query: SELECT l.*, u.bedrooms, u.bathrooms, u.price_min, u.price_max FROM listings l LEFT JOIN units u ON l.id = u.listing_id WHERE l.city='Lekki' AND (l.amenities LIKE '%swimming pool%' OR l.interior_features LIKE '%swimming pool%' OR l.exterior_features LIKE '%swimming pool%')

Example 5:
User: "Show me properties with gym and parking in Lagos"
SQL Query: SELECT l.*, u.bedrooms, u.bathrooms, u.price_min, u.price_max FROM listings l LEFT JOIN units u ON l.id = u.listing_id WHERE l.state='Lagos' AND ((l.amenities LIKE '%gym%' OR l.interior_features LIKE '%gym%' OR l.exterior_features LIKE '%gym%') AND (l.amenities LIKE '%parking%' OR l.interior_features LIKE '%parking%' OR l.exterior_features LIKE '%parking%'))

Example 6:
User: "What is the description of the Sholz apartment, a 4-bedroom property, available in Idimu, Ikorodu, Lagos?"
SQL Query: SELECT l.description, u.bedrooms, u.bathrooms, u.price_min, u.price_max FROM listings l LEFT JOIN units u ON l.id = u.listing_id WHERE l.title LIKE '%Sholz apartment%' AND l.city='Ikorodu' AND (l.bedrooms=4 OR u.bedrooms=4) AND l.state='Lagos' AND l.area='Idimu'

### Popularity
User: "Give me 2 beds in Lagos state by sorting them by most popular"
SQL Query:
SELECT l.*, u.bedrooms, u.bathrooms, u.price_min, u.price_max, COUNT(i.id) AS popularity_score
FROM listings l
LEFT JOIN units u ON l.id = u.listing_id
LEFT JOIN interactions i ON l.id = i.listing_id
WHERE (l.bedrooms = 2 OR u.bedrooms = 2) AND l.state = 'Lagos'
GROUP BY l.id, u.id
ORDER BY popularity_score DESC;

User: "List 3-bedroom apartments in Ikeja sorted by popularity. Saved listings are more important than views."
SQL Query:
SELECT l.*, u.bedrooms, u.bathrooms, u.price_min, u.price_max, SUM(CASE WHEN i.interaction_type = 'saved' THEN 2 WHEN i.interaction_type = 'view' THEN 1 ELSE 0 END) AS popularity_score
FROM listings l
LEFT JOIN units u ON l.id = u.listing_id
LEFT JOIN interactions i ON l.id = i.listing_id
WHERE (l.bedrooms = 3 OR u.bedrooms = 3) AND l.city = 'Ikeja'
GROUP BY l.id, u.id
ORDER BY popularity_score DESC;

Respond with ONLY a JSON object: {"sql_query": "..."}`

const rewriteSystemPrompt = `You are an assistant that reformulates an original question to enable more precise SQL queries. Ensure that all necessary details, such as table joins, are preserved to retrieve complete and accurate data.

Respond with ONLY a JSON object: {"question": "..."}`

// Generator converts questions to SQL and rewrites failed questions for
// retry.
type Generator struct {
	model pkg.LanguageModel
}

// NewGenerator builds a query generator.
func NewGenerator(model pkg.LanguageModel) *Generator {
	return &Generator{model: model}
}

// ConvertToSQL generates a SQL query for a natural-language question.
func (g *Generator) ConvertToSQL(ctx context.Context, question string) (string, error) {
	var out struct {
		SQLQuery string `json:"sql_query"`
	}
	err := llm.CompleteJSON(ctx, g.model, sqlSystemPrompt, "Question: "+question, &out)
	if err != nil {
		return "", fmt.Errorf("sql generation failed: %w", err)
	}
	sql := strings.TrimSpace(out.SQLQuery)
	if sql == "" {
		return "", fmt.Errorf("sql generation returned empty query")
	}
	logger.Debug().Str("sql", sql).Msg("generated query")
	return sql, nil
}

// RewriteQuestion reformulates a question after a failed execution so
// the next generation attempt has more to work with.
func (g *Generator) RewriteQuestion(ctx context.Context, question string) (string, error) {
	var out struct {
		Question string `json:"question"`
	}
	user := "Original Question: " + question + "\nReformulate the question to enable more precise SQL queries, ensuring all necessary details are preserved."
	if err := llm.CompleteJSON(ctx, g.model, rewriteSystemPrompt, user, &out); err != nil {
		return "", fmt.Errorf("question rewrite failed: %w", err)
	}
	rewritten := strings.TrimSpace(out.Question)
	if rewritten == "" {
		return question, nil
	}
	return rewritten, nil
}
