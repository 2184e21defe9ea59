package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"stockbrief/internal/billing"
	"stockbrief/internal/core"
	"stockbrief/internal/external"
	"stockbrief/internal/fundamentals"
	"stockbrief/internal/types"
)

// statementFetchLimit is one period more than the history so the oldest
// shown period still gets a growth figure.
const statementFetchLimit = fundamentals.HistoryPeriods + 1

// PlanResolver returns the normalized plan of an account. quota.Gate
// implements it.
type PlanResolver interface {
	Plan(ctx context.Context, userID string) (types.PlanTier, billing.PlanLimits, error)
}

// ProMetricsHandler serves derived margins to pro accounts.
type ProMetricsHandler struct {
	plans      PlanResolver
	financials external.FinancialDataProvider
	logger     *slog.Logger
}

// NewProMetricsHandler creates a ProMetricsHandler.
func NewProMetricsHandler(plans PlanResolver, financials external.FinancialDataProvider, logger *slog.Logger) *ProMetricsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProMetricsHandler{plans: plans, financials: financials, logger: logger}
}

// RegisterRoutes mounts the pro metrics route. The caller wraps the router
// with core.Server.RequireIdentity.
func (h *ProMetricsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/pro-metrics", h.Get)
}

type proMetricsResponse struct {
	Symbol   string                       `json:"symbol"`
	Plan     string                       `json:"plan"`
	Snapshot *fundamentals.PeriodMetrics  `json:"snapshot"`
	History  []fundamentals.PeriodMetrics `json:"history"`
}

// Get handles GET /api/pro-metrics?symbol=.
func (h *ProMetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := types.GetIdentity(ctx)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	symbol := core.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if !core.ValidTicker(symbol) {
		core.Error(w, r, invalidSymbolError())
		return
	}

	plan, limits, err := h.plans.Plan(ctx, identity.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "plan lookup failed", "user_id", identity.ID, "error", err)
		core.Error(w, r, err)
		return
	}
	if !limits.ProMetrics {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodePermissionPlan,
			"Pro metrics are available on the pro plan.",
			nil,
			map[string]any{"plan": string(plan)},
		))
		return
	}

	var (
		income   []types.IncomeStatement
		cashFlow []types.CashFlowStatement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = h.financials.IncomeStatements(gctx, symbol, statementFetchLimit)
		return err
	})
	g.Go(func() error {
		var err error
		cashFlow, err = h.financials.CashFlowStatements(gctx, symbol, statementFetchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.ErrorContext(ctx, "financial statements fetch failed",
			"user_id", identity.ID,
			"symbol", symbol,
			"error", err,
		)
		code := types.ErrCodeUpstreamFinancials
		if types.IsUpstream(err) {
			code = types.CodeOf(err)
		}
		core.Error(w, r, types.NewAppError(code, "Financial data is unavailable right now. Please try again shortly.", err))
		return
	}

	summary := fundamentals.Compute(income, cashFlow)
	history := summary.History
	if history == nil {
		history = []fundamentals.PeriodMetrics{}
	}

	core.JSON(w, r, http.StatusOK, proMetricsResponse{
		Symbol:   symbol,
		Plan:     string(plan),
		Snapshot: summary.Snapshot,
		History:  history,
	})
}

func invalidSymbolError() *types.AppError {
	return types.NewAppError(
		types.ErrCodeValidationInvalidSymbol,
		"symbol must be 1-10 characters of A-Z, '.' or '-'",
		nil,
	)
}
