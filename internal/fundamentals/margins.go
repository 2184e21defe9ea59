// Package fundamentals derives per-period profitability ratios from income
// and cash-flow statements.
package fundamentals

import (
	"sort"

	"stockbrief/internal/types"
)

// HistoryPeriods is the number of periods returned in a history.
const HistoryPeriods = 5

// PeriodMetrics are the ratios for one reporting period. A nil ratio means
// the denominator was zero or the input was missing.
type PeriodMetrics struct {
	Date               string   `json:"date"`
	CalendarYear       string   `json:"calendar_year,omitempty"`
	Period             string   `json:"period,omitempty"`
	Revenue            float64  `json:"revenue"`
	GrossMargin        *float64 `json:"gross_margin"`
	OperatingMargin    *float64 `json:"operating_margin"`
	NetMargin          *float64 `json:"net_margin"`
	FreeCashFlow       *float64 `json:"free_cash_flow"`
	FreeCashFlowMargin *float64 `json:"free_cash_flow_margin"`
	RevenueGrowth      *float64 `json:"revenue_growth"`
}

// Summary is the latest period plus a short history, oldest first.
type Summary struct {
	Snapshot *PeriodMetrics  `json:"snapshot"`
	History  []PeriodMetrics `json:"history"`
}

// Compute joins income and cash-flow statements on their date and derives
// ratios. Inputs may be in any order. Periods with no income statement are
// skipped; a missing cash-flow statement leaves the cash-flow ratios nil.
func Compute(income []types.IncomeStatement, cashFlow []types.CashFlowStatement) Summary {
	cfByDate := make(map[string]types.CashFlowStatement, len(cashFlow))
	for _, cf := range cashFlow {
		cfByDate[cf.Date] = cf
	}

	sorted := make([]types.IncomeStatement, len(income))
	copy(sorted, income)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	all := make([]PeriodMetrics, 0, len(sorted))
	for i, inc := range sorted {
		m := PeriodMetrics{
			Date:            inc.Date,
			CalendarYear:    inc.CalendarYear,
			Period:          inc.Period,
			Revenue:         inc.Revenue,
			GrossMargin:     ratio(inc.GrossProfit, inc.Revenue),
			OperatingMargin: ratio(inc.OperatingIncome, inc.Revenue),
			NetMargin:       ratio(inc.NetIncome, inc.Revenue),
		}
		if cf, ok := cfByDate[inc.Date]; ok {
			fcf := freeCashFlow(cf)
			m.FreeCashFlow = &fcf
			m.FreeCashFlowMargin = ratio(fcf, inc.Revenue)
		}
		if i > 0 {
			if g := ratio(inc.Revenue, sorted[i-1].Revenue); g != nil {
				*g -= 1
				m.RevenueGrowth = g
			}
		}
		all = append(all, m)
	}

	if len(all) > HistoryPeriods {
		all = all[len(all)-HistoryPeriods:]
	}
	s := Summary{History: all}
	if len(all) > 0 {
		latest := all[len(all)-1]
		s.Snapshot = &latest
	}
	return s
}

// freeCashFlow prefers the reported figure and falls back to operating cash
// flow plus capital expenditure, which is reported as a negative number.
func freeCashFlow(cf types.CashFlowStatement) float64 {
	if cf.FreeCashFlow != 0 {
		return cf.FreeCashFlow
	}
	return cf.OperatingCashFlow + cf.CapitalExpenditure
}

func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	r := num / den
	return &r
}
