package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stockbrief/internal/core"
	"stockbrief/internal/external"
	"stockbrief/internal/types"
)

const maxProxyLimit = 40

// FMPProxyHandler forwards statement lookups to the financial data provider
// so the browser never sees the provider key.
type FMPProxyHandler struct {
	financials external.FinancialDataProvider
	logger     *slog.Logger
}

// NewFMPProxyHandler creates an FMPProxyHandler.
func NewFMPProxyHandler(financials external.FinancialDataProvider, logger *slog.Logger) *FMPProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FMPProxyHandler{financials: financials, logger: logger}
}

// RegisterRoutes mounts the proxy routes. They are public.
func (h *FMPProxyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/fmp/income-statement", h.statement(external.StatementIncome))
	r.Get("/api/fmp/cash-flow-statement", h.statement(external.StatementCashFlow))
}

func (h *FMPProxyHandler) statement(kind external.StatementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		symbol := core.NormalizeSymbol(query.Get("symbol"))
		if !core.ValidTicker(symbol) {
			core.Error(w, r, invalidSymbolError())
			return
		}

		q := external.StatementQuery{Symbol: symbol, Kind: kind}
		switch p := query.Get("period"); p {
		case "annual", "quarter":
			q.Period = p
		}
		if n, err := strconv.Atoi(query.Get("limit")); err == nil && n >= 1 && n <= maxProxyLimit {
			q.Limit = n
		}

		raw, err := h.financials.FetchStatement(r.Context(), q)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "statement proxy failed",
				"symbol", symbol,
				"statement", string(kind),
				"error", err,
			)
			code := types.ErrCodeUpstreamFinancials
			if types.IsUpstream(err) {
				code = types.CodeOf(err)
			}
			core.Error(w, r, types.NewAppError(code, "Financial data is unavailable right now. Please try again shortly.", err))
			return
		}

		contentType := raw.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(raw.StatusCode)
		_, _ = w.Write(raw.Body)
	}
}
