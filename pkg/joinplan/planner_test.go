package joinplan

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

func TestComputeJoinPath_BaseOnly(t *testing.T) {
	reg := fakeRegistry{
		"accounts": {Name: "accounts", Table: "analytics.accounts"},
	}

	plan, err := ComputeJoinPath("accounts", []string{"accounts"}, reg)
	require.NoError(t, err)
	assert.Empty(t, plan.Edges)
	assert.Equal(t, map[string]string{"accounts": "t0"}, plan.AliasByEntity)
	assert.Equal(t, []string{"accounts"}, plan.OrderedEntities)
}

func TestComputeJoinPath_SingleEdge(t *testing.T) {
	reg := fakeRegistry{
		"accounts": {
			Name:  "accounts",
			Table: "analytics.accounts",
			Joins: []models.Join{
				{TargetEntity: "companies", Relationship: models.ManyToOne, FromField: "company_id", ToField: "id"},
			},
		},
		"companies": {Name: "companies", Table: "analytics.companies"},
	}

	plan, err := ComputeJoinPath("accounts", []string{"accounts", "companies"}, reg)
	require.NoError(t, err)
	require.Len(t, plan.Edges, 1)
	assert.Equal(t, "accounts", plan.Edges[0].From)
	assert.Equal(t, "companies", plan.Edges[0].To)
	assert.Equal(t, "company_id", plan.Edges[0].On.From)
	assert.Equal(t, "id", plan.Edges[0].On.To)
	assert.Equal(t, models.ManyToOne, plan.Edges[0].Relationship)
	assert.Equal(t, "t0", plan.AliasByEntity["accounts"])
	assert.Equal(t, "t1", plan.AliasByEntity["companies"])
}

func TestComputeJoinPath_MultiHop(t *testing.T) {
	reg := fakeRegistry{
		"opportunities": {
			Name:  "opportunities",
			Table: "crm.opportunities",
			Joins: []models.Join{
				{TargetEntity: "accounts", Relationship: models.ManyToOne, FromField: "account_id", ToField: "id"},
			},
		},
		"accounts": {
			Name:  "accounts",
			Table: "analytics.accounts",
			Joins: []models.Join{
				{TargetEntity: "companies", Relationship: models.ManyToOne, FromField: "company_id", ToField: "id"},
			},
		},
		"companies": {Name: "companies", Table: "analytics.companies"},
	}

	plan, err := ComputeJoinPath("opportunities", []string{"opportunities", "companies"}, reg)
	require.NoError(t, err)
	require.Len(t, plan.Edges, 2)
	assert.Equal(t, "opportunities", plan.Edges[0].From)
	assert.Equal(t, "accounts", plan.Edges[0].To)
	assert.Equal(t, "accounts", plan.Edges[1].From)
	assert.Equal(t, "companies", plan.Edges[1].To)
	assert.Equal(t, "t0", plan.AliasByEntity["opportunities"])
	assert.Equal(t, "t1", plan.AliasByEntity["accounts"])
	assert.Equal(t, "t2", plan.AliasByEntity["companies"])
}

func TestComputeJoinPath_DeterministicAliasOrdering(t *testing.T) {
	reg := fakeRegistry{
		"accounts": {
			Name:  "accounts",
			Table: "analytics.accounts",
			Joins: []models.Join{
				{TargetEntity: "zeta", Relationship: models.ManyToOne, FromField: "zeta_id", ToField: "id"},
				{TargetEntity: "alpha", Relationship: models.ManyToOne, FromField: "alpha_id", ToField: "id"},
			},
		},
		"zeta":  {Name: "zeta", Table: "analytics.zeta"},
		"alpha": {Name: "alpha", Table: "analytics.alpha"},
	}

	plan, err := ComputeJoinPath("accounts", []string{"accounts", "zeta", "alpha"}, reg)
	require.NoError(t, err)
	assert.Equal(t, "t0", plan.AliasByEntity["accounts"])
	assert.Equal(t, "t1", plan.AliasByEntity["alpha"])
	assert.Equal(t, "t2", plan.AliasByEntity["zeta"])
	assert.Equal(t, []string{"accounts", "alpha", "zeta"}, plan.OrderedEntities)
}

func TestComputeJoinPath_UnreachableTarget(t *testing.T) {
	reg := fakeRegistry{
		"accounts":   {Name: "accounts", Table: "analytics.accounts"},
		"detached":   {Name: "detached", Table: "analytics.detached"},
	}

	_, err := ComputeJoinPath("accounts", []string{"accounts", "detached"}, reg)
	require.Error(t, err)
	var jerr *JoinError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "accounts", jerr.Base)
	assert.Equal(t, "detached", jerr.Target)
}
