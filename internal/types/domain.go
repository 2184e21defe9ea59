package types

import "time"

// Profile is the per-account record holding the plan and the last known
// subscription state. Plan is stored as raw text and may be empty.
type Profile struct {
	ID                      string
	Plan                    string
	SubscriptionID          *string
	SubscriptionStatus      *string
	LastSubscriptionEventAt *time.Time
	UpdatedAt               time.Time
}

// UsageLogEntry is one row of the append-only usage ledger.
type UsageLogEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Action    UsageAction `json:"action"`
	Symbol    string      `json:"symbol,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// SubscriptionUpdate is the write a billing event produces against a profile.
// EventAt orders competing events; nil disables the ordering guard.
type SubscriptionUpdate struct {
	UserID             string
	Plan               PlanTier
	SubscriptionID     string
	SubscriptionStatus string
	EventAt            *time.Time
}

// SearchResult is one organic result returned by the search provider.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link,omitempty"`
	Source  string `json:"source,omitempty"`
	Date    string `json:"date,omitempty"`
}

// IncomeStatement is the subset of an annual or quarterly income statement
// used for derived metrics.
type IncomeStatement struct {
	Date            string  `json:"date"`
	Symbol          string  `json:"symbol"`
	Period          string  `json:"period"`
	CalendarYear    string  `json:"calendarYear"`
	Revenue         float64 `json:"revenue"`
	GrossProfit     float64 `json:"grossProfit"`
	OperatingIncome float64 `json:"operatingIncome"`
	NetIncome       float64 `json:"netIncome"`
	EPS             float64 `json:"eps"`
}

// CashFlowStatement is the subset of a cash-flow statement used for derived
// metrics.
type CashFlowStatement struct {
	Date               string  `json:"date"`
	Symbol             string  `json:"symbol"`
	Period             string  `json:"period"`
	OperatingCashFlow  float64 `json:"operatingCashFlow"`
	CapitalExpenditure float64 `json:"capitalExpenditure"`
	FreeCashFlow       float64 `json:"freeCashFlow"`
}
