package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExecutor implements QueryExecutor against a pgx connection pool.
type PostgresExecutor struct {
	pool *pgxpool.Pool
}

// NewPostgresExecutor wraps an existing pool. The pool's lifecycle is owned
// by the caller; Close is a no-op here so callers can share one pool across
// several executors (e.g. one per request) without double-closing it.
func NewPostgresExecutor(pool *pgxpool.Pool) *PostgresExecutor {
	return &PostgresExecutor{pool: pool}
}

func (e *PostgresExecutor) Execute(ctx context.Context, sqlText string) (*Result, error) {
	rows, err := e.pool.Query(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]Column, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = Column{Name: string(fd.Name), Type: pgTypeNameFromOID(fd.DataTypeOID)}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &Result{Columns: columns, Rows: resultRows, RowCount: len(resultRows)}, nil
}

func (e *PostgresExecutor) Explain(ctx context.Context, sqlText string) (*ExplainResult, error) {
	explainSQL := "EXPLAIN (ANALYZE, BUFFERS, FORMAT TEXT) " + sqlText
	rows, err := e.pool.Query(ctx, explainSQL)
	if err != nil {
		return nil, fmt.Errorf("explain analyze: %w", err)
	}
	defer rows.Close()

	var planLines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan explain output: %w", err)
		}
		planLines = append(planLines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read explain output: %w", err)
	}

	result := &ExplainResult{Plan: strings.Join(planLines, "\n")}
	for _, line := range planLines {
		if strings.Contains(line, "Execution Time:") {
			fmt.Sscanf(line, " Execution Time: %f ms", &result.ExecutionTimeMs)
		} else if strings.Contains(line, "Planning Time:") {
			fmt.Sscanf(line, " Planning Time: %f ms", &result.PlanningTimeMs)
		}
	}

	result.PerformanceHints, result.Score = scorePlan(planLines, result.ExecutionTimeMs)
	return result, nil
}

func (e *PostgresExecutor) Cancel(ctx context.Context, queryID string) error {
	_, err := e.pool.Exec(ctx, "SELECT pg_cancel_backend($1::int)", queryID)
	return err
}

// Close is a no-op: the pool is owned by the caller (see NewPostgresExecutor).
func (e *PostgresExecutor) Close() error { return nil }

// scorePlan derives the Execution phase's "estimate cost" signal: a 0-100
// score (higher is worse) from summed heuristic plan-text signals, plus the
// matching list of human-readable hints. Grounded on the same plan-text
// substring checks the heuristic was built from, folded into one score.
func scorePlan(planLines []string, executionTimeMs float64) ([]string, int) {
	planText := strings.Join(planLines, "\n")
	var hints []string
	score := 0

	if strings.Contains(planText, "Seq Scan") {
		hints = append(hints, "sequential scan detected - consider an index if this table is large")
		score += 20
	}
	if strings.Contains(planText, "Hash Join") && strings.Contains(planText, "Seq Scan") {
		hints = append(hints, "hash join over a sequential scan - an index on the join columns may help")
		score += 15
	}
	if strings.Contains(planText, "Nested Loop") {
		hints = append(hints, "nested loop join - ensure join columns are indexed")
		score += 10
	}
	if strings.Contains(planText, "external merge") || strings.Contains(planText, "Sort Method: external") {
		hints = append(hints, "sort spilled to disk - consider more selective filters")
		score += 20
	}
	if strings.Contains(planText, "Bitmap Heap Scan") {
		hints = append(hints, "bitmap heap scan - may benefit from more selective conditions")
		score += 5
	}

	switch {
	case executionTimeMs > 1000:
		hints = append(hints, fmt.Sprintf("query took %.2fms - review for optimization", executionTimeMs))
		score += 30
	case executionTimeMs > 100:
		hints = append(hints, "query is moderately slow")
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if len(hints) == 0 {
		hints = append(hints, "plan looks efficient - no obvious optimization opportunities")
	}
	return hints, score
}

// pgTypeNameFromOID maps the most common PostgreSQL type OIDs to
// human-readable names; unknown types fall back to "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}
