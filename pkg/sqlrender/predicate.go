package sqlrender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/semlayer/agent-engine/pkg/macro"
	"github.com/semlayer/agent-engine/pkg/models"
)

// lowerPredicate renders a single field/operator/values triple per §4.4.2:
// the field is macro-expanded, in/not_in render a literal list, scalar ops
// require exactly one value, and literal rendering follows the type of the
// value (numbers verbatim, true/false uppercase, strings single-quoted with
// embedded quotes doubled).
func lowerPredicate(field string, op models.FilterOperator, values []string, ctx macro.Context) (string, error) {
	expr, err := macro.Expand("{"+field+"}", ctx)
	if err != nil {
		return "", err
	}

	switch op {
	case models.OpIn, models.OpNotIn:
		if len(values) == 0 {
			return "", &RenderError{Reason: fmt.Sprintf("predicate on %q: %s requires a non-empty value list", field, op)}
		}
		literals := make([]string, len(values))
		for i, v := range values {
			literals[i] = renderLiteral(v)
		}
		verb := "IN"
		if op == models.OpNotIn {
			verb = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", expr, verb, strings.Join(literals, ", ")), nil
	default:
		if len(values) != 1 {
			return "", &RenderError{Reason: fmt.Sprintf("predicate on %q: operator %q requires exactly one value", field, op)}
		}
		return fmt.Sprintf("%s %s %s", expr, string(op), renderLiteral(values[0])), nil
	}
}

// lowerMetricFilter adapts a MetricFilter (string-typed operator, no
// compile-time enum) onto the same lowering path as a StructuredFilter.
func lowerMetricFilter(f models.MetricFilter, ctx macro.Context) (string, error) {
	return lowerPredicate(f.Field, models.FilterOperator(f.Operator), f.Values, ctx)
}

// renderLiteral renders one filter value as a SQL literal: numbers
// verbatim, "true"/"false" as the bare keyword, everything else as a
// single-quoted string with embedded quotes doubled.
func renderLiteral(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	switch strings.ToLower(v) {
	case "true":
		return "TRUE"
	case "false":
		return "FALSE"
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// combinePredicates AND-composes multiple predicates with exactly one pair
// of parentheses wrapping the whole chain; a single predicate is returned
// unwrapped.
func combinePredicates(preds []string) string {
	switch len(preds) {
	case 0:
		return ""
	case 1:
		return preds[0]
	default:
		return "(" + strings.Join(preds, " AND ") + ")"
	}
}
