package sqlrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlayer/agent-engine/pkg/models"
)

type fakeRegistry map[string]*models.Entity

func (f fakeRegistry) Get(name string) (*models.Entity, bool) {
	e, ok := f[name]
	return e, ok
}

func mustEntity(t *testing.T, e models.Entity) *models.Entity {
	t.Helper()
	require.NoError(t, e.BuildIndexes())
	return &e
}

func TestRender_CountGroupedByDimension(t *testing.T) {
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "dwh_prod.analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "account_tier", SQL: `{CUBE}.account_tier`, Type: "string"},
		},
		Measures: []models.Measure{
			{Name: "count", Type: models.MeasureCount},
		},
	})
	reg := fakeRegistry{"accounts": accounts}

	plan := &models.FinalizedPlan{
		SelectedEntities: []string{"accounts"},
		Intent: models.Intent{
			Dimensions: []string{"account_tier"},
			Metrics:    []string{"count"},
		},
	}

	sql, err := Render(plan, reg)
	require.NoError(t, err)
	assert.Contains(t, sql, `t0.account_tier AS "account_tier"`)
	assert.Contains(t, sql, `COUNT(*) AS "count"`)
	assert.Contains(t, sql, "FROM dwh_prod.analytics.accounts t0")
	assert.Contains(t, sql, "GROUP BY 1")
	assert.Contains(t, sql, "LIMIT 1001")
}

func TestRender_SumWithFilterAndTimeRange(t *testing.T) {
	opportunities := mustEntity(t, models.Entity{
		Name:  "opportunities",
		Table: "dwh_prod.crm.opportunities",
		Dimensions: []models.Dimension{
			{Name: "opportunity_type", SQL: `{CUBE}.opportunity_type`, Type: "string"},
		},
		TimeDimensions: []models.TimeDimension{
			{Name: "close_date", SQL: `{CUBE}.close_date`},
		},
		Measures: []models.Measure{
			{Name: "new_business_sum", Type: models.MeasureSum, SQL: `{CUBE}.new_business_annual_recurring_revenue`},
		},
		Metrics: []models.Metric{
			{Name: "new_arr", Type: "atomic", Measure: "new_business_sum"},
		},
	})
	reg := fakeRegistry{"opportunities": opportunities}

	plan := &models.FinalizedPlan{
		SelectedEntities: []string{"opportunities"},
		Intent: models.Intent{
			Metrics: []string{"new_arr"},
			StructuredFilters: []models.StructuredFilter{
				{Field: "opportunity_type", Operator: models.OpIn, Values: []string{"Net New Business", "Upgrade from Pro/Legacy"}},
			},
			TimeRange: &models.TimeRange{Start: "2025-03-26", End: "2025-09-26"},
		},
	}

	sql, err := Render(plan, reg)
	require.NoError(t, err)
	assert.Contains(t, sql, `SUM(t0.new_business_annual_recurring_revenue) AS "new_arr"`)
	assert.Contains(t, sql, "t0.close_date >= '2025-03-26' AND t0.close_date < '2025-09-26'")
	assert.Contains(t, sql, "t0.opportunity_type IN ('Net New Business', 'Upgrade from Pro/Legacy')")
	assert.NotContains(t, sql, "GROUP BY")
	assert.Contains(t, sql, "LIMIT 1001")
}

func TestRender_JoinAcrossEntities(t *testing.T) {
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "dwh_prod.analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "company_id", SQL: `{CUBE}.company_id`, Type: "string"},
			{Name: "name", SQL: `{CUBE}.account_name`, Type: "string"},
		},
		Measures: []models.Measure{{Name: "count", Type: models.MeasureCount}},
		Joins: []models.Join{
			{TargetEntity: "companies", Relationship: models.ManyToOne, FromField: "company_id", ToField: "id"},
		},
	})
	companies := mustEntity(t, models.Entity{
		Name:  "companies",
		Table: "dwh_prod.analytics.companies",
		Dimensions: []models.Dimension{
			{Name: "id", SQL: `{CUBE}.id`, Type: "string"},
			{Name: "industry", SQL: `{CUBE}.industry`, Type: "string"},
		},
	})
	reg := fakeRegistry{"accounts": accounts, "companies": companies}

	plan := &models.FinalizedPlan{
		SelectedEntities: []string{"accounts", "companies"},
		Intent: models.Intent{
			Dimensions: []string{"companies.industry"},
			Metrics:    []string{"count"},
		},
	}

	sql, err := Render(plan, reg)
	require.NoError(t, err)
	assert.Contains(t, sql, "LEFT JOIN dwh_prod.analytics.companies t1 ON t0.\"company_id\" = t1.\"id\"")
	assert.Contains(t, sql, `t1.industry AS "industry"`)
}

func TestRender_UnknownMetricFails(t *testing.T) {
	accounts := mustEntity(t, models.Entity{Name: "accounts", Table: "analytics.accounts"})
	reg := fakeRegistry{"accounts": accounts}

	plan := &models.FinalizedPlan{
		SelectedEntities: []string{"accounts"},
		Intent:           models.Intent{Metrics: []string{"ghost_metric"}},
	}

	_, err := Render(plan, reg)
	require.Error(t, err)
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
}

func TestRender_PredicateFilteredCount(t *testing.T) {
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "account_tier", SQL: `{CUBE}.account_tier`, Type: "string"},
		},
		Measures: []models.Measure{
			{Name: "count", Type: models.MeasureCount},
		},
		Metrics: []models.Metric{
			{
				Name:    "enterprise_count",
				Type:    "atomic",
				Measure: "count",
				Filters: []models.MetricFilter{
					{Field: "account_tier", Operator: "=", Values: []string{"Enterprise"}},
				},
			},
		},
	})
	reg := fakeRegistry{"accounts": accounts}

	plan := &models.FinalizedPlan{
		SelectedEntities: []string{"accounts"},
		Intent:           models.Intent{Metrics: []string{"enterprise_count"}},
	}

	sql, err := Render(plan, reg)
	require.NoError(t, err)
	assert.Contains(t, sql, `COUNT_IF(t0.account_tier = 'Enterprise') AS "enterprise_count"`)
}
