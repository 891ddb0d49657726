package sqlrender

import (
	"fmt"

	"github.com/semlayer/agent-engine/pkg/macro"
	"github.com/semlayer/agent-engine/pkg/models"
)

// buildAggregation renders the aggregation expression for one metric per
// §4.4.1: the base aggregate recipe for measure.Type, swapped for a
// predicate-filtered variant when filters are present.
func buildAggregation(measure *models.Measure, host *models.Entity, filters []models.MetricFilter, ctx macro.Context) (string, error) {
	hostCtx := macro.Context{CurrentEntity: host.Name, AliasByEntity: ctx.AliasByEntity, Registry: ctx.Registry}

	var preds []string
	for _, f := range filters {
		p, err := lowerMetricFilter(f, hostCtx)
		if err != nil {
			return "", err
		}
		preds = append(preds, p)
	}
	pred := combinePredicates(preds)

	var expr string
	if measure.Type != models.MeasureCount {
		e, err := macro.Expand(measure.SQL, hostCtx)
		if err != nil {
			return "", err
		}
		expr = e
	}

	switch measure.Type {
	case models.MeasureCount:
		if pred != "" {
			return fmt.Sprintf("COUNT_IF(%s)", pred), nil
		}
		return "COUNT(*)", nil
	case models.MeasureCountDistinct:
		if pred != "" {
			return fmt.Sprintf("COUNT(DISTINCT IFF(%s, %s, NULL))", pred, expr), nil
		}
		return fmt.Sprintf("COUNT(DISTINCT %s)", expr), nil
	case models.MeasureSum, models.MeasureAvg, models.MeasureMin, models.MeasureMax:
		op := aggregateKeyword(measure.Type)
		if pred != "" {
			return fmt.Sprintf("%s(IFF(%s, %s, NULL))", op, pred, expr), nil
		}
		return fmt.Sprintf("%s(%s)", op, expr), nil
	default:
		return "", &RenderError{Reason: fmt.Sprintf("measure %q: unsupported aggregation type %q", measure.Name, measure.Type)}
	}
}

func aggregateKeyword(t models.MeasureType) string {
	switch t {
	case models.MeasureSum:
		return "SUM"
	case models.MeasureAvg:
		return "AVG"
	case models.MeasureMin:
		return "MIN"
	case models.MeasureMax:
		return "MAX"
	default:
		return ""
	}
}
