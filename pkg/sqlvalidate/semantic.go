package sqlvalidate

import (
	"fmt"
	"strings"

	"github.com/semlayer/agent-engine/pkg/models"
)

// Registry is the minimal read-only view over loaded entities the semantic
// scan needs. pkg/semantic.Store satisfies it.
type Registry interface {
	Get(name string) (*models.Entity, bool)
}

// CheckSemantics validates a FinalizedPlan against a registry already
// populated with every entity in selectedEntities ∪ joinGraph endpoints, per
// the policy in §4.5: schema allow-listing, entity/field/metric resolution,
// and time-dimension presence when a time range is requested.
func CheckSemantics(plan *models.FinalizedPlan, reg Registry, allowedSchemas []string) Result {
	var issues []Issue

	for _, name := range plan.SelectedEntities {
		e, ok := reg.Get(name)
		if !ok {
			issues = append(issues, Issue{Code: "unknown_entity", Message: fmt.Sprintf("selected entity %q is not in the registry", name)})
			continue
		}
		if iss := checkSchemaAllowed(e, allowedSchemas); iss != nil {
			issues = append(issues, *iss)
		}
	}

	for _, edge := range plan.JoinGraph {
		if _, ok := reg.Get(edge.From); !ok {
			issues = append(issues, Issue{Code: "unknown_entity", Message: fmt.Sprintf("join graph endpoint %q is not in the registry", edge.From)})
		}
		if _, ok := reg.Get(edge.To); !ok {
			issues = append(issues, Issue{Code: "unknown_entity", Message: fmt.Sprintf("join graph endpoint %q is not in the registry", edge.To)})
		}
	}

	for _, dim := range plan.Intent.Dimensions {
		if !resolvesField(dim, plan.SelectedEntities, reg) {
			issues = append(issues, Issue{Code: "unknown_dimension", Message: fmt.Sprintf("dimension %q does not resolve against any loaded entity", dim)})
		}
	}

	for _, metric := range plan.Intent.Metrics {
		if !resolvesMetricOrMeasure(metric, plan.SelectedEntities, reg) {
			issues = append(issues, Issue{Code: "unknown_metric", Message: fmt.Sprintf("metric %q does not resolve against any loaded entity", metric)})
		}
	}

	if plan.Intent.TimeRange != nil {
		if !anyEntityHasTimeDimension(plan.SelectedEntities, reg) {
			issues = append(issues, Issue{Code: "missing_time_dimension", Message: "time range requested but no selected entity exposes a time dimension"})
		}
	}

	return Result{OK: len(issues) == 0, Issues: issues}
}

// checkSchemaAllowed enforces that e.Table is schema-qualified and on the
// allow-list.
func checkSchemaAllowed(e *models.Entity, allowedSchemas []string) *Issue {
	parts := strings.Split(e.Table, ".")
	if len(parts) < 2 {
		return &Issue{Code: "unqualified_table", Message: fmt.Sprintf("entity %q table %q is not schema-qualified", e.Name, e.Table)}
	}
	schema := parts[len(parts)-2]
	for _, allowed := range allowedSchemas {
		if strings.EqualFold(schema, allowed) {
			return nil
		}
	}
	return &Issue{Code: "schema_not_allowed", Message: fmt.Sprintf("entity %q schema %q is not in the allow-list", e.Name, schema)}
}

// resolvesField resolves a surface token, either "field" (searched across
// selected entities) or "entity.field" (resolved against that entity only).
func resolvesField(token string, selected []string, reg Registry) bool {
	entityName, field, dotted := splitDotted(token)
	if dotted {
		e, ok := reg.Get(entityName)
		if !ok {
			return false
		}
		_, ok = e.AnyField(field)
		return ok
	}
	for _, name := range selected {
		e, ok := reg.Get(name)
		if !ok {
			continue
		}
		if _, ok := e.AnyField(token); ok {
			return true
		}
	}
	return false
}

func resolvesMetricOrMeasure(token string, selected []string, reg Registry) bool {
	entityName, field, dotted := splitDotted(token)
	if dotted {
		e, ok := reg.Get(entityName)
		if !ok {
			return false
		}
		if _, ok := e.Metric(field); ok {
			return true
		}
		_, ok = e.Measure(field)
		return ok
	}
	for _, name := range selected {
		e, ok := reg.Get(name)
		if !ok {
			continue
		}
		if _, ok := e.Metric(token); ok {
			return true
		}
		if _, ok := e.Measure(token); ok {
			return true
		}
	}
	return false
}

func anyEntityHasTimeDimension(selected []string, reg Registry) bool {
	for _, name := range selected {
		e, ok := reg.Get(name)
		if !ok {
			continue
		}
		if _, ok := e.FirstTimeDimension(); ok {
			return true
		}
	}
	return false
}

func splitDotted(token string) (entity, field string, dotted bool) {
	idx := strings.Index(token, ".")
	if idx < 0 {
		return "", token, false
	}
	return token[:idx], token[idx+1:], true
}
