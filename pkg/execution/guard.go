// Package execution implements the Execution Guard (§4.6): preflight policy
// enforcement, a process-wide circuit breaker, a bounded result cache,
// bounded retries with exponential backoff, and classifier-driven
// auto-repair for the statements the Building phase hands it.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/semlayer/agent-engine/pkg/breaker"
	"github.com/semlayer/agent-engine/pkg/models"
	"github.com/semlayer/agent-engine/pkg/retry"
	"github.com/semlayer/agent-engine/pkg/sqlvalidate"
	"github.com/semlayer/agent-engine/pkg/warehouse"
)

const (
	cacheTTL       = 5 * time.Minute
	cacheCapacity  = 100
	maxRetries     = 3
	retryInitial   = 250 * time.Millisecond
	retryMultiplier = 2.0
	maxRepairAttempts = 2
)

// Config configures a Guard's policy knobs.
type Config struct {
	BreakerThreshold  int
	BreakerResetAfter time.Duration
	StatementTimeout  time.Duration
}

// DefaultConfig returns the thresholds spec'd in §4.6: a 3-failure/60s
// breaker and the 20s statement timeout.
func DefaultConfig() Config {
	return Config{
		BreakerThreshold:  3,
		BreakerResetAfter: 60 * time.Second,
		StatementTimeout:  warehouse.StatementTimeout,
	}
}

// Guard wraps a warehouse.QueryExecutor with preflight policy, a circuit
// breaker, a result cache, bounded retries, and classifier-driven repair.
// One Guard is shared process-wide; all of its state is safe for concurrent
// use.
type Guard struct {
	executor warehouse.QueryExecutor
	cfg      Config
	breaker  *breaker.CircuitBreaker
	cache    *resultCache
	reg      Registry
}

// New builds a Guard over executor. reg supplies the entity registry repair
// needs to qualify or fuzzy-match identifiers.
func New(executor warehouse.QueryExecutor, cfg Config, reg Registry) *Guard {
	return &Guard{
		executor: executor,
		cfg:      cfg,
		breaker: breaker.New(breaker.Config{
			Threshold:  cfg.BreakerThreshold,
			ResetAfter: cfg.BreakerResetAfter,
			Name:       "execution",
		}),
		cache: newResultCache(cacheTTL, cacheCapacity),
		reg:   reg,
	}
}

// Run executes sqlText under the guard's full policy: preflight syntax
// check, cache lookup keyed on the exact original sqlText, circuit breaker,
// bounded retries, and up to two auto-repair attempts on a classified
// failure. aliasByEntity is the computed join path's alias assignment, used
// only by repair to qualify identifiers.
func (g *Guard) Run(ctx context.Context, sqlText string, aliasByEntity map[string]string) *models.ExecutionResult {
	cacheKey := sqlText

	if cached, ok := g.cache.get(cacheKey, time.Now()); ok {
		return &models.ExecutionResult{
			OK:           true,
			Rows:         cached.Rows,
			Columns:      cached.Columns,
			FromCache:    true,
			AttemptedSQL: sqlText,
		}
	}

	if syn := sqlvalidate.CheckSyntax(sqlText); !syn.OK {
		return &models.ExecutionResult{
			OK:           false,
			Error:        formatIssues(syn.Issues),
			AttemptedSQL: sqlText,
		}
	}

	current := sqlText
	repaired := false
	var repairReason string

	for attempt := 0; ; attempt++ {
		result, execErr := g.runOnce(ctx, current)
		if execErr == nil {
			g.cache.put(cacheKey, &models.CachedResult{
				Rows:     result.Rows,
				Columns:  result.Columns,
				CachedAt: time.Now(),
			})
			result.AttemptedSQL = current
			result.Repaired = repaired
			result.RepairReason = repairReason
			return result
		}

		if attempt >= maxRepairAttempts {
			return &models.ExecutionResult{
				OK:           false,
				Error:        execErr.Error(),
				AttemptedSQL: current,
				Repaired:     repaired,
				RepairReason: repairReason,
			}
		}

		class := Classify(execErr.Error())
		fixed, reason, ok := Repair(class, current, aliasByEntity, g.reg)
		if !ok {
			return &models.ExecutionResult{
				OK:           false,
				Error:        execErr.Error(),
				AttemptedSQL: current,
				Repaired:     repaired,
				RepairReason: repairReason,
			}
		}

		current = fixed
		repaired = true
		repairReason = reason
	}
}

// runOnce drives one breaker-gated, retried attempt at executing sqlText.
func (g *Guard) runOnce(ctx context.Context, sqlText string) (*models.ExecutionResult, error) {
	allowed, err := g.breaker.Allow()
	if !allowed {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, g.statementTimeout())
	defer cancel()

	var result *warehouse.Result
	start := time.Now()

	retryCfg := &retry.Config{
		MaxRetries:   maxRetries - 1,
		InitialDelay: retryInitial,
		MaxDelay:     retryInitial * (1 << maxRetries),
		Multiplier:   retryMultiplier,
		JitterFactor: 0,
	}

	runErr := retry.DoIfRetryable(execCtx, retryCfg, func() error {
		r, err := g.executor.Execute(execCtx, sqlText)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	elapsed := time.Since(start)

	if runErr != nil {
		g.breaker.RecordFailure()
		return nil, runErr
	}
	g.breaker.RecordSuccess()

	truncated := false
	rows := result.Rows
	if len(rows) > 1000 {
		rows = rows[:1000]
		truncated = true
	}

	columns := make([]models.ColumnMeta, len(result.Columns))
	for i, c := range result.Columns {
		columns[i] = models.ColumnMeta{Name: c.Name, Type: c.Type}
	}

	return &models.ExecutionResult{
		OK:            true,
		Rows:          rows,
		Columns:       columns,
		ExecutionTime: elapsed,
		Truncated:     truncated,
	}, nil
}

func (g *Guard) statementTimeout() time.Duration {
	if g.cfg.StatementTimeout > 0 {
		return g.cfg.StatementTimeout
	}
	return warehouse.StatementTimeout
}

func formatIssues(issues []sqlvalidate.Issue) string {
	if len(issues) == 0 {
		return "syntax check failed"
	}
	return fmt.Sprintf("%s: %s", issues[0].Code, issues[0].Message)
}
