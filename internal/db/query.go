package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row maps column name to value in the order the driver reported the columns.
type Row = *orderedmap.OrderedMap[string, any]

type QueryResult struct {
	Columns []string
	Rows    []Row
}

// ExecuteQuery runs a single statement read-only and returns every row.
// The transaction is always rolled back, which also hands the connection
// back to the pool.
func (hdb *HDb) ExecuteQuery(ctx context.Context, statement string) (*QueryResult, error) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil, fmt.Errorf("sql is required")
	}
	if hdb.validateSQL {
		if err := ValidateStatement(statement); err != nil {
			return nil, err
		}
	}
	if hdb.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hdb.queryTimeout)
		defer cancel()
	}

	tx, err := hdb.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := &QueryResult{Columns: columns, Rows: make([]Row, 0)}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := orderedmap.New[string, any](len(columns))
		for i, column := range columns {
			row.Set(column, normalizeValue(values[i]))
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// normalizeValue makes driver values JSON-encodable. NaN and infinities
// become null.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return nil
		}
		return typed
	case float32:
		if math.IsNaN(float64(typed)) || math.IsInf(float64(typed), 0) {
			return nil
		}
		return typed
	default:
		return typed
	}
}

// JSON serializes the rows as an array of objects, one per row. An empty
// result is "[]".
func (r *QueryResult) JSON() (string, error) {
	rows := r.Rows
	if rows == nil {
		rows = make([]Row, 0)
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}
	return string(encoded), nil
}

// Preview renders up to limit rows as an aligned text table. A limit <= 0
// renders everything.
func (r *QueryResult) Preview(limit int) string {
	if len(r.Rows) == 0 {
		return "(no rows)"
	}
	shown := r.Rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(r.Columns, "\t"))
	for _, row := range shown {
		cells := make([]string, 0, len(r.Columns))
		for _, column := range r.Columns {
			value, _ := row.Get(column)
			cells = append(cells, formatCell(value))
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()

	if rest := len(r.Rows) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "(%d more rows)\n", rest)
	}
	return b.String()
}

func formatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return typed.Format(time.RFC3339)
	case string:
		return strings.ReplaceAll(typed, "\t", " ")
	default:
		return fmt.Sprint(typed)
	}
}
