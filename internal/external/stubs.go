package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"stockbrief/internal/types"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stubs let the API boot with APP_ENV=local and no third-party keys. They log
// every call and return deterministic content.
// ---------------------------------------------------------------------------

// StubSearchProvider returns Num canned results.
type StubSearchProvider struct {
	logger *slog.Logger
}

// NewStubSearchProvider creates a new StubSearchProvider.
func NewStubSearchProvider(logger *slog.Logger) *StubSearchProvider {
	return &StubSearchProvider{logger: logger}
}

func (s *StubSearchProvider) Search(ctx context.Context, req SearchRequest) ([]types.SearchResult, error) {
	s.logger.InfoContext(ctx, "stub: Search called",
		"query", req.Query,
		"num", req.Num,
	)
	n := req.Num
	if n <= 0 {
		n = 1
	}
	results := make([]types.SearchResult, 0, n)
	for i := 1; i <= n; i++ {
		results = append(results, types.SearchResult{
			Title:   fmt.Sprintf("Stub result %d", i),
			Snippet: fmt.Sprintf("Placeholder snippet %d for %q.", i, req.Query),
			Link:    fmt.Sprintf("https://stub.local/search/%d", i),
			Source:  "stub.local",
		})
	}
	return results, nil
}

// StubTextGenerator echoes the prompt length instead of calling a model.
type StubTextGenerator struct {
	logger *slog.Logger
}

// NewStubTextGenerator creates a new StubTextGenerator.
func NewStubTextGenerator(logger *slog.Logger) *StubTextGenerator {
	return &StubTextGenerator{logger: logger}
}

func (s *StubTextGenerator) Name() string { return "stub" }

func (s *StubTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.logger.InfoContext(ctx, "stub: Generate called",
		"prompt_len", len(prompt),
	)
	return fmt.Sprintf("Stub report generated from a %d character prompt.", len(prompt)), nil
}

// StubFinancialData serves a fixed five-year statement series whose revenue
// grows 10% a year.
type StubFinancialData struct {
	logger *slog.Logger
}

// NewStubFinancialData creates a new StubFinancialData.
func NewStubFinancialData(logger *slog.Logger) *StubFinancialData {
	return &StubFinancialData{logger: logger}
}

const stubYears = 5

func (s *StubFinancialData) FetchStatement(ctx context.Context, q StatementQuery) (*RawResponse, error) {
	s.logger.InfoContext(ctx, "stub: FetchStatement called",
		"symbol", q.Symbol,
		"statement", q.Kind,
	)
	var (
		body []byte
		err  error
	)
	switch q.Kind {
	case StatementIncome:
		body, err = json.Marshal(stubIncome(q.Symbol))
	case StatementCashFlow:
		body, err = json.Marshal(stubCashFlow(q.Symbol))
	default:
		return &RawResponse{StatusCode: http.StatusNotFound, ContentType: "application/json", Body: []byte(`[]`)}, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "stub encode failed", err)
	}
	return &RawResponse{StatusCode: http.StatusOK, ContentType: "application/json", Body: body}, nil
}

func (s *StubFinancialData) IncomeStatements(ctx context.Context, symbol string, limit int) ([]types.IncomeStatement, error) {
	s.logger.InfoContext(ctx, "stub: IncomeStatements called", "symbol", symbol)
	return truncate(stubIncome(symbol), limit), nil
}

func (s *StubFinancialData) CashFlowStatements(ctx context.Context, symbol string, limit int) ([]types.CashFlowStatement, error) {
	s.logger.InfoContext(ctx, "stub: CashFlowStatements called", "symbol", symbol)
	return truncate(stubCashFlow(symbol), limit), nil
}

// stubIncome returns newest first, matching the provider.
func stubIncome(symbol string) []types.IncomeStatement {
	out := make([]types.IncomeStatement, 0, stubYears)
	revenue := 1000.0 * 1.4641 // 1000 grown four times by 10%
	for i := 0; i < stubYears; i++ {
		year := 2024 - i
		out = append(out, types.IncomeStatement{
			Date:            strconv.Itoa(year) + "-12-31",
			Symbol:          strings.ToUpper(symbol),
			Period:          "FY",
			CalendarYear:    strconv.Itoa(year),
			Revenue:         revenue,
			GrossProfit:     revenue * 0.5,
			OperatingIncome: revenue * 0.2,
			NetIncome:       revenue * 0.1,
			EPS:             1,
		})
		revenue /= 1.1
	}
	return out
}

func stubCashFlow(symbol string) []types.CashFlowStatement {
	income := stubIncome(symbol)
	out := make([]types.CashFlowStatement, 0, len(income))
	for _, inc := range income {
		out = append(out, types.CashFlowStatement{
			Date:               inc.Date,
			Symbol:             inc.Symbol,
			Period:             inc.Period,
			OperatingCashFlow:  inc.Revenue * 0.25,
			CapitalExpenditure: -inc.Revenue * 0.05,
			FreeCashFlow:       inc.Revenue * 0.2,
		})
	}
	return out
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// ---------------------------------------------------------------------------
// Interface Compliance
// ---------------------------------------------------------------------------

var (
	_ SearchProvider        = (*StubSearchProvider)(nil)
	_ TextGenerator         = (*StubTextGenerator)(nil)
	_ FinancialDataProvider = (*StubFinancialData)(nil)
)
