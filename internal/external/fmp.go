package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"stockbrief/internal/types"
)

const fmpProvider = "fmp"

// maxStatementBody caps proxied statement payloads.
const maxStatementBody = 4 << 20

// FMPConfig configures the Financial Modeling Prep client.
type FMPConfig struct {
	APIKey string
	// BaseURL includes the version segment, e.g. .../api/v3.
	BaseURL string
}

// FMPClient implements FinancialDataProvider.
type FMPClient struct {
	base   HTTPDoer
	cfg    FMPConfig
	logger *slog.Logger
}

// NewFMPClient creates a Financial Modeling Prep client.
func NewFMPClient(httpClient *http.Client, cfg FMPConfig, logger *slog.Logger) *FMPClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &FMPClient{
		base:   NewBaseClient(httpClient, fmpProvider),
		cfg:    cfg,
		logger: logger,
	}
}

func (c *FMPClient) statementURL(q StatementQuery) string {
	params := url.Values{}
	if q.Period != "" {
		params.Set("period", q.Period)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	params.Set("apikey", c.cfg.APIKey)
	return fmt.Sprintf("%s/%s/%s?%s", c.cfg.BaseURL, q.Kind, url.PathEscape(q.Symbol), params.Encode())
}

// FetchStatement implements FinancialDataProvider.
func (c *FMPClient) FetchStatement(ctx context.Context, q StatementQuery) (*RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statementURL(q), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build financial data request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, retag(types.ErrCodeUpstreamFinancials, fmpProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatementBody))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamFinancials, "failed to read financial data response", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return &RawResponse{StatusCode: resp.StatusCode, ContentType: contentType, Body: body}, nil
}

// IncomeStatements implements FinancialDataProvider.
func (c *FMPClient) IncomeStatements(ctx context.Context, symbol string, limit int) ([]types.IncomeStatement, error) {
	var out []types.IncomeStatement
	if err := c.fetchInto(ctx, StatementQuery{Symbol: symbol, Kind: StatementIncome, Period: "annual", Limit: limit}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CashFlowStatements implements FinancialDataProvider.
func (c *FMPClient) CashFlowStatements(ctx context.Context, symbol string, limit int) ([]types.CashFlowStatement, error) {
	var out []types.CashFlowStatement
	if err := c.fetchInto(ctx, StatementQuery{Symbol: symbol, Kind: StatementCashFlow, Period: "annual", Limit: limit}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FMPClient) fetchInto(ctx context.Context, q StatementQuery, dst any) error {
	raw, err := c.FetchStatement(ctx, q)
	if err != nil {
		return err
	}
	if raw.StatusCode != http.StatusOK {
		code := types.ErrCodeUpstreamFinancials
		if raw.StatusCode == http.StatusTooManyRequests {
			code = types.ErrCodeUpstreamRateLimited
		}
		return types.NewAppErrorWithDetails(code,
			fmt.Sprintf("%s returned status %d", fmpProvider, raw.StatusCode), nil,
			map[string]any{"provider": fmpProvider, "status": raw.StatusCode, "statement": string(q.Kind)})
	}
	if err := json.Unmarshal(raw.Body, dst); err != nil {
		// FMP answers errors such as an invalid key with a 200 and an object body.
		c.logger.WarnContext(ctx, "unexpected financial data payload",
			"statement", q.Kind, "symbol", q.Symbol, "error", err)
		return types.NewAppError(types.ErrCodeUpstreamFinancials, "unexpected financial data payload", err)
	}
	return nil
}

var _ FinancialDataProvider = (*FMPClient)(nil)
