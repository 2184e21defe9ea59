package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockbrief/internal/types"
)

func TestClassifySubscription(t *testing.T) {
	tests := []struct {
		name   string
		status string
		label  string
		want   types.PlanTier
	}{
		{"active status wins over label", "active", "Plus Monthly", types.PlanPro},
		{"active status without label", "ACTIVE", "", types.PlanPro},
		{"paid order with pro label", "paid", "StockBrief Pro", types.PlanPro},
		{"label match is case-insensitive", "on_trial", "PRO yearly", types.PlanPro},
		{"label without pro is plus", "paid", "Plus Monthly", types.PlanPlus},
		{"any other label is plus", "", "Starter", types.PlanPlus},
		{"no status no label", "", "", types.PlanFree},
		{"inactive status without label", "expired", "", types.PlanFree},
		{"whitespace label is absent", "cancelled", "   ", types.PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySubscription(tt.status, tt.label))
		})
	}
}
