// Package billing holds the plan table and the rules that map billing
// provider state onto plans.
package billing

import (
	"strings"

	"stockbrief/internal/types"
)

// PlanLimits is what a plan entitles an account to.
type PlanLimits struct {
	// WeeklyReports is the number of reports admitted per quota window.
	// Ignored when Unlimited is set.
	WeeklyReports int
	Unlimited     bool
	// SearchDepth is the number of search results fed into the prompt.
	SearchDepth int
	Prompt      types.PromptVariant
	// ProMetrics grants the derived fundamentals endpoint.
	ProMetrics bool
}

// PlanRegistry defines the authoritative limits for each tier.
type PlanRegistry interface {
	// GetLimits returns the limits for the given tier. Unknown tiers get the
	// free limits.
	GetLimits(tier types.PlanTier) PlanLimits
}

type staticPlanRegistry struct {
	limits map[types.PlanTier]PlanLimits
}

// planDefaults is the plan table:
//
//	| Plan | Reports/week | Search results | Prompt             |
//	|------|--------------|----------------|--------------------|
//	| free | 2            | 8              | research_brief     |
//	| plus | 10           | 8              | research_brief     |
//	| pro  | unlimited    | 15             | institutional_memo |
var planDefaults = map[types.PlanTier]PlanLimits{
	types.PlanFree: {
		WeeklyReports: 2,
		SearchDepth:   8,
		Prompt:        types.PromptResearchBrief,
	},
	types.PlanPlus: {
		WeeklyReports: 10,
		SearchDepth:   8,
		Prompt:        types.PromptResearchBrief,
	},
	types.PlanPro: {
		Unlimited:   true,
		SearchDepth: 15,
		Prompt:      types.PromptInstitutionalMemo,
		ProMetrics:  true,
	},
}

var freeLimits = planDefaults[types.PlanFree]

// NewStaticPlanRegistry returns a PlanRegistry backed by the built-in table.
func NewStaticPlanRegistry() PlanRegistry {
	m := make(map[types.PlanTier]PlanLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{limits: m}
}

// GetLimits returns the limits for tier, falling back to free.
func (r *staticPlanRegistry) GetLimits(tier types.PlanTier) PlanLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return freeLimits
}

// NormalizePlan maps a stored plan value onto a known tier. Matching is
// case-insensitive and ignores surrounding whitespace; anything else,
// including the empty string, is free. Every reader of stored plan values
// goes through this function.
func NormalizePlan(raw string) types.PlanTier {
	switch types.PlanTier(strings.ToLower(strings.TrimSpace(raw))) {
	case types.PlanPro:
		return types.PlanPro
	case types.PlanPlus:
		return types.PlanPlus
	default:
		return types.PlanFree
	}
}

// ParsePlan is the strict form of NormalizePlan used for operator input,
// where a typo must not silently downgrade an account.
func ParsePlan(raw string) (types.PlanTier, bool) {
	tier := types.PlanTier(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := planDefaults[tier]; !ok {
		return "", false
	}
	return tier, true
}
