// Package quota decides whether an account may run another billable
// operation in the current weekly window.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stockbrief/internal/billing"
	"stockbrief/internal/types"
)

// ProfileReader loads the stored profile. A missing profile is (nil, nil).
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
}

// UsageCounter counts ledger entries at or after since.
type UsageCounter interface {
	CountSince(ctx context.Context, userID string, action types.UsageAction, since time.Time) (int, error)
}

// Decision is the outcome of an admission check. Count and Limit are zero
// for unlimited plans, which are admitted without reading the ledger.
type Decision struct {
	Admitted    bool
	Plan        types.PlanTier
	Limits      billing.PlanLimits
	Count       int
	Limit       int
	WindowStart time.Time
}

// Unlimited reports whether the decision came from an unlimited plan.
func (d Decision) Unlimited() bool { return d.Limits.Unlimited }

// Message is the user-facing rejection text.
func (d Decision) Message() string {
	return fmt.Sprintf("Weekly limit reached: %d of %d reports used on the %s plan. Upgrade for more reports.", d.Count, d.Limit, d.Plan)
}

// Err converts a rejection into the error returned to the API layer.
func (d Decision) Err() *types.AppError {
	if d.Admitted {
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrCodeLimitWeeklyQuota, d.Message(), nil, map[string]any{
		"plan":  string(d.Plan),
		"count": d.Count,
		"limit": d.Limit,
	})
}

// Gate evaluates plan limits against the usage ledger.
//
// Admission is a read followed by a later, separate append, so concurrent
// requests from one account can each observe the same count and all be
// admitted. The overshoot is bounded by the number of in-flight requests.
type Gate struct {
	profiles ProfileReader
	usage    UsageCounter
	plans    billing.PlanRegistry
	clock    types.Clock
	loc      *time.Location
	logger   *slog.Logger
}

// NewGate creates a Gate whose weekly window is computed in loc.
func NewGate(profiles ProfileReader, usage UsageCounter, plans billing.PlanRegistry, clock types.Clock, loc *time.Location, logger *slog.Logger) *Gate {
	if clock == nil {
		clock = types.RealClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		profiles: profiles,
		usage:    usage,
		plans:    plans,
		clock:    clock,
		loc:      loc,
		logger:   logger,
	}
}

// Plan returns the normalized plan of the account and its limits. Accounts
// without a profile are free.
func (g *Gate) Plan(ctx context.Context, userID string) (types.PlanTier, billing.PlanLimits, error) {
	profile, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", billing.PlanLimits{}, types.NewAppError(types.ErrCodeInternalQuotaCheck, "unable to verify plan", err)
	}
	raw := ""
	if profile != nil {
		raw = profile.Plan
	}
	tier := billing.NormalizePlan(raw)
	return tier, g.plans.GetLimits(tier), nil
}

// Admit checks whether identity may perform action now. Store failures
// return an error and never admit.
func (g *Gate) Admit(ctx context.Context, identity types.UserIdentity, action types.UsageAction) (Decision, error) {
	tier, limits, err := g.Plan(ctx, identity.ID)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{Plan: tier, Limits: limits}
	if limits.Unlimited {
		decision.Admitted = true
		return decision, nil
	}

	start := WeekStart(g.clock.Now(), g.loc)
	count, err := g.usage.CountSince(ctx, identity.ID, action, start)
	if err != nil {
		return Decision{}, types.NewAppError(types.ErrCodeInternalQuotaCheck, "unable to verify usage", err)
	}

	decision.Count = count
	decision.Limit = limits.WeeklyReports
	decision.WindowStart = start
	decision.Admitted = count < limits.WeeklyReports

	if !decision.Admitted {
		g.logger.InfoContext(ctx, "quota exhausted",
			"user_id", identity.ID,
			"plan", string(tier),
			"action", string(action),
			"count", count,
			"limit", limits.WeeklyReports,
		)
	}
	return decision, nil
}

// Usage reports the current window for operator tooling. Unlike Admit it
// reads the ledger for unlimited plans too.
func (g *Gate) Usage(ctx context.Context, userID string, action types.UsageAction) (Decision, error) {
	tier, limits, err := g.Plan(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	start := WeekStart(g.clock.Now(), g.loc)
	count, err := g.usage.CountSince(ctx, userID, action, start)
	if err != nil {
		return Decision{}, types.NewAppError(types.ErrCodeInternalQuotaCheck, "unable to verify usage", err)
	}
	d := Decision{
		Plan:        tier,
		Limits:      limits,
		Count:       count,
		WindowStart: start,
		Admitted:    limits.Unlimited || count < limits.WeeklyReports,
	}
	if !limits.Unlimited {
		d.Limit = limits.WeeklyReports
	}
	return d, nil
}

// WeekStart returns the most recent Sunday 00:00 in loc at or before now.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}
