package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockbrief/internal/types"
)

func TestGetLimits(t *testing.T) {
	reg := NewStaticPlanRegistry()

	free := reg.GetLimits(types.PlanFree)
	assert.Equal(t, 2, free.WeeklyReports)
	assert.False(t, free.Unlimited)
	assert.Equal(t, types.PromptResearchBrief, free.Prompt)
	assert.False(t, free.ProMetrics)

	plus := reg.GetLimits(types.PlanPlus)
	assert.Equal(t, 10, plus.WeeklyReports)
	assert.Equal(t, types.PromptResearchBrief, plus.Prompt)

	pro := reg.GetLimits(types.PlanPro)
	assert.True(t, pro.Unlimited)
	assert.Equal(t, types.PromptInstitutionalMemo, pro.Prompt)
	assert.True(t, pro.ProMetrics)
	assert.Greater(t, pro.SearchDepth, free.SearchDepth)
	assert.Equal(t, 15, pro.SearchDepth)
}

func TestGetLimits_UnknownTierIsFree(t *testing.T) {
	reg := NewStaticPlanRegistry()
	assert.Equal(t, reg.GetLimits(types.PlanFree), reg.GetLimits(types.PlanTier("enterprise")))
	assert.Equal(t, reg.GetLimits(types.PlanFree), reg.GetLimits(""))
}

func TestNewStaticPlanRegistry_IsolatedCopy(t *testing.T) {
	reg := NewStaticPlanRegistry().(*staticPlanRegistry)
	reg.limits[types.PlanFree] = PlanLimits{WeeklyReports: 999}

	assert.Equal(t, 2, planDefaults[types.PlanFree].WeeklyReports)
	assert.Equal(t, 2, NewStaticPlanRegistry().GetLimits(types.PlanFree).WeeklyReports)
}

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		raw  string
		want types.PlanTier
	}{
		{"pro", types.PlanPro},
		{"PRO", types.PlanPro},
		{" Pro ", types.PlanPro},
		{"plus", types.PlanPlus},
		{"Plus", types.PlanPlus},
		{"free", types.PlanFree},
		{"", types.PlanFree},
		{"premium", types.PlanFree},
		{"professional", types.PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePlan(tt.raw))
		})
	}
}

func TestParsePlan(t *testing.T) {
	tier, ok := ParsePlan("PLUS")
	assert.True(t, ok)
	assert.Equal(t, types.PlanPlus, tier)

	_, ok = ParsePlan("gold")
	assert.False(t, ok)
	_, ok = ParsePlan("")
	assert.False(t, ok)
}
