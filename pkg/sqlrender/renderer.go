// Package sqlrender materializes a FinalizedPlan into SQL: SELECT list
// (dimensions + predicate-filtered metric aggregations), FROM + JOIN chain,
// WHERE (time range + structured filters), GROUP BY, and a fixed LIMIT.
package sqlrender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/semlayer/agent-engine/pkg/joinplan"
	"github.com/semlayer/agent-engine/pkg/macro"
	"github.com/semlayer/agent-engine/pkg/models"
)

// Registry is the minimal read-only view over loaded entities the renderer
// needs. pkg/semantic.Store satisfies it.
type Registry interface {
	Get(name string) (*models.Entity, bool)
}

// RenderError reports a fatal rendering failure: an unresolvable metric, a
// bad join predicate, or a malformed predicate.
type RenderError struct {
	Reason string
}

func (e *RenderError) Error() string { return "sql render error: " + e.Reason }

// Render produces the SQL string for plan against reg. The output is stable
// modulo whitespace for identical inputs.
func Render(plan *models.FinalizedPlan, reg Registry) (string, error) {
	if err := plan.Validate(); err != nil {
		return "", err
	}

	base := plan.SelectedEntities[0]
	baseEntity, ok := reg.Get(base)
	if !ok {
		return "", &RenderError{Reason: fmt.Sprintf("base entity %q not found in registry", base)}
	}

	jp, err := joinplan.ComputeJoinPath(base, plan.SelectedEntities, reg)
	if err != nil {
		return "", err
	}

	ctx := macro.Context{CurrentEntity: base, AliasByEntity: jp.AliasByEntity, Registry: reg}

	selectItems, err := buildSelectList(plan, jp, reg, ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT\n  ")
	b.WriteString(strings.Join(selectItems, ",\n  "))
	b.WriteString("\n")

	fmt.Fprintf(&b, "FROM %s %s\n", baseEntity.Table, jp.AliasByEntity[base])

	for _, edge := range jp.Edges {
		clause, err := renderJoinClause(edge, jp, reg)
		if err != nil {
			return "", err
		}
		b.WriteString(clause)
	}

	whereClauses, err := buildWhereClauses(plan, baseEntity, ctx)
	if err != nil {
		return "", err
	}
	if len(whereClauses) > 0 {
		b.WriteString("WHERE ")
		b.WriteString(strings.Join(whereClauses, "\n  AND "))
		b.WriteString("\n")
	}

	for _, free := range plan.Intent.Filters {
		b.WriteString("-- " + sanitizeComment(free) + "\n")
	}

	dimCount := len(plan.Intent.Dimensions)
	if dimCount > 0 {
		ordinals := make([]string, dimCount)
		for i := range ordinals {
			ordinals[i] = strconv.Itoa(i + 1)
		}
		b.WriteString("GROUP BY " + strings.Join(ordinals, ", ") + "\n")
	}

	b.WriteString("LIMIT 1001")

	return b.String(), nil
}

func buildSelectList(plan *models.FinalizedPlan, jp *joinplan.Plan, reg Registry, ctx macro.Context) ([]string, error) {
	var items []string

	for _, dim := range plan.Intent.Dimensions {
		expr, err := macro.Expand("{"+dim+"}", ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, fmt.Sprintf(`%s AS "%s"`, expr, lastDottedSegment(dim)))
	}

	for _, metricName := range plan.Intent.Metrics {
		expr, err := buildMetricExpr(metricName, jp, reg, ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, fmt.Sprintf(`%s AS "%s"`, expr, lastDottedSegment(metricName)))
	}

	return items, nil
}

// buildMetricExpr resolves metricName to a host entity and renders its
// aggregation expression, per §4.4's host-scan-then-synthesize policy.
func buildMetricExpr(metricName string, jp *joinplan.Plan, reg Registry, ctx macro.Context) (string, error) {
	for _, entityName := range jp.OrderedEntities {
		e, ok := reg.Get(entityName)
		if !ok {
			continue
		}
		if metric, ok := e.Metric(metricName); ok {
			measure, ok := e.Measure(metric.Measure)
			if !ok {
				return "", &RenderError{Reason: fmt.Sprintf("metric %q on entity %q references unknown measure %q", metricName, entityName, metric.Measure)}
			}
			return buildAggregation(measure, e, metric.Filters, ctx)
		}
	}

	for _, entityName := range jp.OrderedEntities {
		e, ok := reg.Get(entityName)
		if !ok {
			continue
		}
		if measure, ok := e.Measure(metricName); ok {
			return buildAggregation(measure, e, nil, ctx)
		}
	}

	return "", &RenderError{Reason: fmt.Sprintf("metric %q not found on any selected or joined entity", metricName)}
}

// renderJoinClause renders one FROM-clause JOIN: LEFT for every
// relationship except many_to_many, which uses INNER; the ON predicate
// qualifies each side's declared join field via qualifySimpleColumn.
func renderJoinClause(e models.JoinGraphEdge, jp *joinplan.Plan, reg Registry) (string, error) {
	toEntity, ok := reg.Get(e.To)
	if !ok {
		return "", &RenderError{Reason: fmt.Sprintf("join target %q not found in registry", e.To)}
	}
	fromEntity, ok := reg.Get(e.From)
	if !ok {
		return "", &RenderError{Reason: fmt.Sprintf("join source %q not found in registry", e.From)}
	}

	fromCol, err := qualifyDeclaredField(fromEntity, e.On.From, jp.AliasByEntity)
	if err != nil {
		return "", err
	}
	toCol, err := qualifyDeclaredField(toEntity, e.On.To, jp.AliasByEntity)
	if err != nil {
		return "", err
	}

	verb := "LEFT JOIN"
	if e.Relationship == models.ManyToMany {
		verb = "INNER JOIN"
	}

	toAlias := jp.AliasByEntity[e.To]
	return fmt.Sprintf("%s %s %s ON %s = %s\n", verb, toEntity.Table, toAlias, fromCol, toCol), nil
}

// qualifyDeclaredField resolves fieldName to its declared dimension on
// entity, then qualifies that dimension's own simple sql token with the
// entity's computed alias.
func qualifyDeclaredField(entity *models.Entity, fieldName string, aliasByEntity map[string]string) (string, error) {
	dim, ok := entity.Dimension(fieldName)
	if !ok {
		return "", &RenderError{Reason: fmt.Sprintf("join field %q is not a declared dimension on entity %q", fieldName, entity.Name)}
	}
	ctx := macro.Context{CurrentEntity: entity.Name, AliasByEntity: aliasByEntity}
	col, err := macro.QualifySimpleColumn(dim.SQL, ctx)
	if err != nil {
		return "", &RenderError{Reason: fmt.Sprintf("join field %q on entity %q: %v", fieldName, entity.Name, err)}
	}
	return col, nil
}

func buildWhereClauses(plan *models.FinalizedPlan, baseEntity *models.Entity, ctx macro.Context) ([]string, error) {
	var clauses []string

	if plan.Intent.TimeRange != nil {
		td, ok := baseEntity.FirstTimeDimension()
		if !ok {
			return nil, &RenderError{Reason: fmt.Sprintf("time range requested but base entity %q has no time dimension", baseEntity.Name)}
		}
		tExpr, err := macro.Expand(td.SQL, ctx)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, fmt.Sprintf("%s >= %s AND %s < %s",
			tExpr, renderLiteral(plan.Intent.TimeRange.Start), tExpr, renderLiteral(plan.Intent.TimeRange.End)))
	}

	for _, f := range plan.Intent.StructuredFilters {
		p, err := lowerPredicate(f.Field, f.Operator, f.Values, ctx)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, p)
	}

	return clauses, nil
}

func lastDottedSegment(s string) string {
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// sanitizeComment strips any "*/" sequence from free-text filter text before
// it's emitted as a block-comment-free line comment, so a crafted filter
// string can't break out of the comment.
func sanitizeComment(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "*/", "")
	return s
}
