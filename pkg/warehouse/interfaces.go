// Package warehouse defines the QueryExecutor contract the Execution Guard
// drives, and a concrete Postgres-backed implementation of it.
package warehouse

import (
	"context"
	"time"
)

// Column describes one result column's name and driver-reported type.
type Column struct {
	Name string
	Type string
}

// Result is the raw row/column payload of a successful query, before the
// Execution Guard wraps it into a models.ExecutionResult.
type Result struct {
	Columns  []Column
	Rows     []map[string]any
	RowCount int
}

// ExplainResult carries cost-estimation signals for the Execution phase's
// "estimate cost" tool: raw plan text plus the derived timing and hints.
type ExplainResult struct {
	Plan             string
	PlanningTimeMs   float64
	ExecutionTimeMs  float64
	PerformanceHints []string
	Score            int // 0-100, higher is worse; see scorePlan in postgres.go
}

// QueryExecutor is the warehouse driver contract: execute a single
// statement under a deadline, or explain it for a cost estimate. Every
// method must honor ctx's deadline and release its connection on every exit
// path, including cancellation.
type QueryExecutor interface {
	// Execute runs sqlText and returns its rows and columns. ctx must carry
	// the per-statement deadline the caller wants enforced.
	Execute(ctx context.Context, sqlText string) (*Result, error)

	// Explain runs EXPLAIN (ANALYZE, BUFFERS, FORMAT TEXT) on sqlText
	// without committing to a full row fetch by the caller, returning
	// timing and heuristic hints for the cost-estimation tool.
	Explain(ctx context.Context, sqlText string) (*ExplainResult, error)

	// Cancel best-effort cancels the in-flight statement identified by
	// queryID, used when a statement timeout fires.
	Cancel(ctx context.Context, queryID string) error

	Close() error
}

// StatementTimeout is the default per-statement execution deadline.
const StatementTimeout = 20 * time.Second

// ExplainTimeout is the default deadline for a cost-estimation EXPLAIN call.
const ExplainTimeout = 10 * time.Second
