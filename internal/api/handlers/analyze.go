package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stockbrief/internal/core"
	"stockbrief/internal/report"
	"stockbrief/internal/types"
)

// ReportGenerator runs the quota-gated report flow. report.Pipeline
// implements it.
type ReportGenerator interface {
	Handle(ctx context.Context, identity types.UserIdentity, symbol string) (*report.Result, error)
}

// AnalyzeHandler serves company research reports.
type AnalyzeHandler struct {
	reports   ReportGenerator
	validator *core.Validator
	logger    *slog.Logger
}

// NewAnalyzeHandler creates an AnalyzeHandler.
func NewAnalyzeHandler(reports ReportGenerator, v *core.Validator, logger *slog.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeHandler{reports: reports, validator: v, logger: logger}
}

// RegisterRoutes mounts the report route. The caller wraps the router with
// core.Server.RequireIdentity.
func (h *AnalyzeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/analyze-stock", h.Analyze)
}

type analyzeRequest struct {
	Symbol string `json:"symbol" validate:"required,ticker"`
}

type analyzeResponse struct {
	Text string `json:"text"`
	Plan string `json:"plan"`
}

// Analyze handles POST /api/analyze-stock.
//
// Responses: 200 {text, plan}; 400 for a bad symbol; 401 without a valid
// bearer token; 403 {error, plan} when the weekly quota is used up; 500 when
// the quota check or an upstream provider fails.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	identity, ok := types.GetIdentity(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req analyzeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.Symbol = core.NormalizeSymbol(req.Symbol)
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.reports.Handle(r.Context(), identity, req.Symbol)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, analyzeResponse{
		Text: result.Text,
		Plan: string(result.Plan),
	})
}
