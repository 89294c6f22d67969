package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"casalinger_engine/pkg"
)

// SQLiteExecutor implements pkg.QueryExecutor on an embedded SQLite
// database holding the listings schema.
type SQLiteExecutor struct {
	db *sql.DB
}

// NewSQLiteExecutor opens (or creates) the database at path.
func NewSQLiteExecutor(path string) (*SQLiteExecutor, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &SQLiteExecutor{db: db}, nil
}

// Close releases the underlying database handle.
func (e *SQLiteExecutor) Close() error {
	return e.db.Close()
}

// Execute runs one query. SELECTs return rows; other statements return
// an empty result on success.
func (e *SQLiteExecutor) Execute(ctx context.Context, queryText string) (*pkg.QueryResult, error) {
	trimmed := strings.TrimSpace(queryText)
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		if _, err := e.db.ExecContext(ctx, trimmed); err != nil {
			return nil, err
		}
		return &pkg.QueryResult{}, nil
	}

	rows, err := e.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &pkg.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// StaticExecutor serves canned results keyed by substrings of the query
// text. Used in tests and demos without a database.
type StaticExecutor struct {
	results map[string]*pkg.QueryResult
}

// NewStaticExecutor builds an executor over canned results. A nil map
// means every query returns an empty result.
func NewStaticExecutor(results map[string]*pkg.QueryResult) *StaticExecutor {
	return &StaticExecutor{results: results}
}

func (e *StaticExecutor) Execute(_ context.Context, queryText string) (*pkg.QueryResult, error) {
	lowered := strings.ToLower(queryText)
	for needle, result := range e.results {
		if strings.Contains(lowered, strings.ToLower(needle)) {
			return result, nil
		}
	}
	return &pkg.QueryResult{}, nil
}
