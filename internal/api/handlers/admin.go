package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"stockbrief/internal/billing"
	"stockbrief/internal/core"
	"stockbrief/internal/quota"
	"stockbrief/internal/types"
)

const recentUsageLimit = 20

// PlanWriter overrides plans. db.ProfileRepo implements it.
type PlanWriter interface {
	SetPlan(ctx context.Context, userID string, plan types.PlanTier) error
}

// UsageInspector reports the current quota window. quota.Gate implements it.
type UsageInspector interface {
	Usage(ctx context.Context, userID string, action types.UsageAction) (quota.Decision, error)
}

// UsageLister reads recent ledger entries. db.UsageLedgerRepo implements it.
type UsageLister interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]types.UsageLogEntry, error)
}

// AdminHandler serves operator endpoints for plan overrides and usage.
type AdminHandler struct {
	plans     PlanWriter
	usage     UsageInspector
	ledger    UsageLister
	validator *core.Validator
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(plans PlanWriter, usage UsageInspector, ledger UsageLister, v *core.Validator, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		plans:     plans,
		usage:     usage,
		ledger:    ledger,
		validator: v,
		logger:    logger,
	}
}

// RegisterRoutes mounts the admin routes. The caller wraps the router with
// core.Server.RequireAdminKey.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin/profiles/{userID}", func(r chi.Router) {
		r.Put("/plan", h.SetPlan)
		r.Get("/usage", h.GetUsage)
	})
}

type setPlanRequest struct {
	Plan string `json:"plan" validate:"required,plan_tier"`
}

type setPlanResponse struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

// SetPlan handles PUT /api/admin/profiles/{userID}/plan.
func (h *AdminHandler) SetPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req setPlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	plan, _ := billing.ParsePlan(req.Plan)

	if err := h.plans.SetPlan(r.Context(), userID, plan); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "plan overridden", "user_id", userID, "plan", string(plan))
	core.JSON(w, r, http.StatusOK, setPlanResponse{UserID: userID, Plan: string(plan)})
}

type usageResponse struct {
	UserID      string                `json:"user_id"`
	Plan        string                `json:"plan"`
	Count       int                   `json:"count"`
	Limit       int                   `json:"limit"`
	Unlimited   bool                  `json:"unlimited"`
	WindowStart time.Time             `json:"window_start"`
	Recent      []types.UsageLogEntry `json:"recent"`
}

// GetUsage handles GET /api/admin/profiles/{userID}/usage.
func (h *AdminHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	d, err := h.usage.Usage(r.Context(), userID, types.ActionCompanyIntro)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	recent, err := h.ledger.ListRecent(r.Context(), userID, recentUsageLimit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if recent == nil {
		recent = []types.UsageLogEntry{}
	}

	core.JSON(w, r, http.StatusOK, usageResponse{
		UserID:      userID,
		Plan:        string(d.Plan),
		Count:       d.Count,
		Limit:       d.Limit,
		Unlimited:   d.Unlimited(),
		WindowStart: d.WindowStart,
		Recent:      recent,
	})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "user id is required", nil))
		return "", false
	}
	return userID, true
}
