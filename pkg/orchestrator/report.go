package orchestrator

import (
	"fmt"
	"strings"

	"github.com/semlayer/agent-engine/pkg/models"
)

// nullRateWarnThreshold flags a column whose null rate across all rows
// exceeds this fraction.
const nullRateWarnThreshold = 0.5

// runSanityChecks scans a successful execution result for the three
// sanity-check signals the Reporting phase's "sanity check" tool reports:
// high null rates, negative counts, and implausible percentages. It never
// fails the request; it only annotates the narrative with what it saw.
func runSanityChecks(result *models.ExecutionResult) []string {
	var notes []string
	if len(result.Rows) == 0 {
		return []string{"query returned no rows"}
	}

	for _, col := range result.Columns {
		nulls := 0
		negatives := 0
		outOfRangePercent := 0
		isCountColumn := looksLikeCount(col.Name)
		isPercentColumn := looksLikePercent(col.Name)

		for _, row := range result.Rows {
			v, present := row[col.Name]
			if !present || v == nil {
				nulls++
				continue
			}
			n, ok := asFloat(v)
			if !ok {
				continue
			}
			if isCountColumn && n < 0 {
				negatives++
			}
			if isPercentColumn && (n < 0 || n > 100) {
				outOfRangePercent++
			}
		}

		rate := float64(nulls) / float64(len(result.Rows))
		if rate > nullRateWarnThreshold {
			notes = append(notes, fmt.Sprintf("column %q is %.0f%% null", col.Name, rate*100))
		}
		if negatives > 0 {
			notes = append(notes, fmt.Sprintf("column %q has %d negative value(s) despite looking like a count", col.Name, negatives))
		}
		if outOfRangePercent > 0 {
			notes = append(notes, fmt.Sprintf("column %q has %d value(s) outside the 0-100%% range", col.Name, outOfRangePercent))
		}
	}

	return notes
}

func looksLikeCount(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "count") || strings.Contains(lower, "total") || strings.Contains(lower, "num_")
}

func looksLikePercent(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "percent") || strings.Contains(lower, "pct") || strings.Contains(lower, "rate")
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
