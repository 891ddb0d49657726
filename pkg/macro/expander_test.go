package macro

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

func TestExpand_SimpleCubeColumn(t *testing.T) {
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "name", SQL: "{CUBE}.account_name", Type: "string"},
		},
	})

	reg := fakeRegistry{"accounts": accounts}
	ctx := Context{CurrentEntity: "accounts", AliasByEntity: map[string]string{"accounts": "t0"}, Registry: reg}

	out, err := Expand("{name}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "t0.account_name", out)
}

func TestExpand_RecursiveDimension(t *testing.T) {
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "first_name", SQL: "{CUBE}.first_name", Type: "string"},
			{Name: "last_name", SQL: "{CUBE}.last_name", Type: "string"},
			{Name: "full_name", SQL: "CONCAT({first_name}, ' ', {last_name})", Type: "string"},
		},
	})

	reg := fakeRegistry{"accounts": accounts}
	ctx := Context{CurrentEntity: "accounts", AliasByEntity: map[string]string{"accounts": "t0"}, Registry: reg}

	out, err := Expand("{full_name}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "CONCAT(t0.first_name, ' ', t0.last_name)", out)
}

func TestExpand_CrossEntityReference(t *testing.T) {
	companies := mustEntity(t, models.Entity{
		Name:  "companies",
		Table: "analytics.companies",
		Dimensions: []models.Dimension{
			{Name: "industry", SQL: "{CUBE}.industry", Type: "string"},
		},
	})
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "company_industry", SQL: "{companies.industry}", Type: "string"},
		},
	})

	reg := fakeRegistry{"accounts": accounts, "companies": companies}
	ctx := Context{
		CurrentEntity: "accounts",
		AliasByEntity: map[string]string{"accounts": "t0", "companies": "t1"},
		Registry:      reg,
	}

	out, err := Expand("{company_industry}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1.industry", out)
}

func TestExpand_UnknownField(t *testing.T) {
	accounts := mustEntity(t, models.Entity{Name: "accounts", Table: "analytics.accounts"})
	reg := fakeRegistry{"accounts": accounts}
	ctx := Context{CurrentEntity: "accounts", AliasByEntity: map[string]string{"accounts": "t0"}, Registry: reg}

	_, err := Expand("{missing}", ctx)
	require.Error(t, err)
	var merr *MacroError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "field_not_found", merr.Kind)
}

func TestExpand_UnknownEntityReference(t *testing.T) {
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "bad_ref", SQL: "{ghost.field}", Type: "string"},
		},
	})
	reg := fakeRegistry{"accounts": accounts}
	ctx := Context{CurrentEntity: "accounts", AliasByEntity: map[string]string{"accounts": "t0"}, Registry: reg}

	_, err := Expand("{bad_ref}", ctx)
	require.Error(t, err)
	var merr *MacroError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "unknown_entity", merr.Kind)
}

func TestExpand_CyclicExpansion(t *testing.T) {
	accounts := mustEntity(t, models.Entity{
		Name:  "accounts",
		Table: "analytics.accounts",
		Dimensions: []models.Dimension{
			{Name: "a", SQL: "{b}", Type: "string"},
			{Name: "b", SQL: "{a}", Type: "string"},
		},
	})
	reg := fakeRegistry{"accounts": accounts}
	ctx := Context{CurrentEntity: "accounts", AliasByEntity: map[string]string{"accounts": "t0"}, Registry: reg}

	_, err := Expand("{a}", ctx)
	require.Error(t, err)
	var merr *MacroError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "cyclic_expansion", merr.Kind)
}

func TestQualifySimpleColumn(t *testing.T) {
	ctx := Context{CurrentEntity: "accounts", AliasByEntity: map[string]string{"accounts": "t0", "companies": "t1"}}

	out, err := QualifySimpleColumn("{CUBE}.id", ctx)
	require.NoError(t, err)
	assert.Equal(t, `t0."id"`, out)

	out, err = QualifySimpleColumn("{companies.id}", ctx)
	require.NoError(t, err)
	assert.Equal(t, `t1."id"`, out)
}

func TestQualifySimpleColumn_RejectsComplexExpression(t *testing.T) {
	ctx := Context{CurrentEntity: "accounts", AliasByEntity: map[string]string{"accounts": "t0"}}

	_, err := QualifySimpleColumn("CONCAT({CUBE}.a, {CUBE}.b)", ctx)
	require.Error(t, err)
}
