package billing

import (
	"strings"

	"stockbrief/internal/types"
)

// ClassifySubscription derives the plan a billing event implies:
//
//  1. an explicit "active" status means pro;
//  2. otherwise a product or variant label decides, "pro" anywhere in the
//     label (any case) meaning pro and any other label meaning plus;
//  3. with neither, the event is a deactivation and the plan is free.
func ClassifySubscription(status, label string) types.PlanTier {
	if strings.EqualFold(strings.TrimSpace(status), string(types.SubStatusActive)) {
		return types.PlanPro
	}

	label = strings.TrimSpace(label)
	if label != "" {
		if strings.Contains(strings.ToLower(label), "pro") {
			return types.PlanPro
		}
		return types.PlanPlus
	}

	return types.PlanFree
}
