package external

import (
	"context"
	"net/http"

	"stockbrief/internal/types"
)

// IdentityProvider validates an opaque bearer token against the identity
// service and returns the account it belongs to.
type IdentityProvider interface {
	// GetUser returns auth_token_invalid when the provider rejects the token
	// and upstream_identity_unavailable when the provider cannot be reached.
	GetUser(ctx context.Context, accessToken string) (*types.UserIdentity, error)
}

// SearchRequest is one web search call.
type SearchRequest struct {
	Query string
	// Num is the requested result count.
	Num int
}

// SearchProvider runs web searches. Each call is billed by the provider.
type SearchProvider interface {
	Search(ctx context.Context, req SearchRequest) ([]types.SearchResult, error)
}

// TextGenerator produces a completion for a single prompt. Each call is billed
// by the provider.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model in logs.
	Name() string
}

// StatementKind selects a financial statement endpoint.
type StatementKind string

const (
	StatementIncome   StatementKind = "income-statement"
	StatementCashFlow StatementKind = "cash-flow-statement"
)

// StatementQuery identifies a statement series.
type StatementQuery struct {
	Symbol string
	Kind   StatementKind
	// Period is "annual" or "quarter". Empty uses the provider default.
	Period string
	// Limit is the number of periods. Zero uses the provider default.
	Limit int
}

// RawResponse is an upstream response captured for verbatim proxying.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// FinancialDataProvider serves financial statements.
type FinancialDataProvider interface {
	// FetchStatement returns the upstream status and body unmodified. Only
	// transport failures produce an error.
	FetchStatement(ctx context.Context, q StatementQuery) (*RawResponse, error)
	// IncomeStatements returns parsed statements, newest first.
	IncomeStatements(ctx context.Context, symbol string, limit int) ([]types.IncomeStatement, error)
	// CashFlowStatements returns parsed statements, newest first.
	CashFlowStatements(ctx context.Context, symbol string, limit int) ([]types.CashFlowStatement, error)
}

// WebhookVerifier checks a payment provider webhook signature.
type WebhookVerifier interface {
	// Verify validates payload against the signature header value using the
	// signing secret. Returns nil on success.
	Verify(payload []byte, signature string, secret string) error
}

// HTTPDoer is the subset of BaseClient used by providers, so tests can swap
// the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ HTTPDoer = (*BaseClient)(nil)
