package fundamentals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbrief/internal/types"
)

func inc(date string, revenue, gross, op, net float64) types.IncomeStatement {
	return types.IncomeStatement{Date: date, Revenue: revenue, GrossProfit: gross, OperatingIncome: op, NetIncome: net}
}

func TestCompute_BasicRatios(t *testing.T) {
	s := Compute(
		[]types.IncomeStatement{
			inc("2024-12-31", 200, 100, 50, 20),
			inc("2023-12-31", 160, 80, 40, 16),
		},
		[]types.CashFlowStatement{
			{Date: "2024-12-31", FreeCashFlow: 30},
			{Date: "2023-12-31", OperatingCashFlow: 40, CapitalExpenditure: -8},
		},
	)

	require.Len(t, s.History, 2)
	assert.Equal(t, "2023-12-31", s.History[0].Date, "history is oldest first")
	assert.Nil(t, s.History[0].RevenueGrowth)
	assert.InDelta(t, 32.0/160, *s.History[0].FreeCashFlowMargin, 1e-9, "falls back to OCF + capex")

	require.NotNil(t, s.Snapshot)
	snap := s.Snapshot
	assert.Equal(t, "2024-12-31", snap.Date)
	assert.InDelta(t, 0.5, *snap.GrossMargin, 1e-9)
	assert.InDelta(t, 0.25, *snap.OperatingMargin, 1e-9)
	assert.InDelta(t, 0.1, *snap.NetMargin, 1e-9)
	assert.InDelta(t, 0.15, *snap.FreeCashFlowMargin, 1e-9)
	assert.InDelta(t, 0.25, *snap.RevenueGrowth, 1e-9)
}

func TestCompute_ZeroDenominatorsAreNil(t *testing.T) {
	s := Compute(
		[]types.IncomeStatement{
			inc("2023-12-31", 0, 0, -5, -5),
			inc("2024-12-31", 0, 0, -3, -3),
		},
		[]types.CashFlowStatement{{Date: "2024-12-31", FreeCashFlow: -1}},
	)
	snap := s.Snapshot
	require.NotNil(t, snap)
	assert.Nil(t, snap.GrossMargin)
	assert.Nil(t, snap.OperatingMargin)
	assert.Nil(t, snap.NetMargin)
	assert.Nil(t, snap.FreeCashFlowMargin)
	assert.Nil(t, snap.RevenueGrowth, "previous revenue of zero")
	require.NotNil(t, snap.FreeCashFlow)
	assert.Equal(t, -1.0, *snap.FreeCashFlow)
}

func TestCompute_HistoryCappedAtFive(t *testing.T) {
	dates := []string{"2017-12-31", "2018-12-31", "2019-12-31", "2020-12-31", "2021-12-31", "2022-12-31", "2023-12-31"}
	var income []types.IncomeStatement
	for i := len(dates) - 1; i >= 0; i-- { // newest first, as the provider returns them
		income = append(income, inc(dates[i], float64(100+i), 1, 1, 1))
	}

	s := Compute(income, nil)
	require.Len(t, s.History, HistoryPeriods)
	assert.Equal(t, "2019-12-31", s.History[0].Date)
	assert.Equal(t, "2023-12-31", s.Snapshot.Date)
	// Growth for the first kept period uses the dropped 2018 figure.
	require.NotNil(t, s.History[0].RevenueGrowth)
	assert.InDelta(t, 102.0/101-1, *s.History[0].RevenueGrowth, 1e-9)
	assert.Nil(t, s.Snapshot.FreeCashFlowMargin, "no cash-flow statement")
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, nil)
	assert.Nil(t, s.Snapshot)
	assert.Empty(t, s.History)
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	income := []types.IncomeStatement{inc("2024-12-31", 1, 1, 1, 1), inc("2023-12-31", 1, 1, 1, 1)}
	Compute(income, nil)
	assert.Equal(t, "2024-12-31", income[0].Date)
}
