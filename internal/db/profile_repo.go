package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"stockbrief/internal/types"
)

// ProfileRepo reads and writes the per-account plan and subscription state.
//
// Subscription writes use optimistic ordering on last_subscription_event_at:
// an event older than the last applied one is dropped, and replaying the
// same event rewrites identical values.
type ProfileRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(db DBTX, logger *slog.Logger) *ProfileRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileRepo{db: db, logger: logger}
}

// GetProfile returns the profile for userID, or (nil, nil) when none exists.
// Plan is returned as stored; callers normalize it.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	var p types.Profile
	err := r.db.QueryRow(ctx,
		`SELECT id, COALESCE(plan, ''), subscription_id, subscription_status,
		        last_subscription_event_at, updated_at
		 FROM profiles
		 WHERE id = $1`,
		userID,
	).Scan(
		&p.ID,
		&p.Plan,
		&p.SubscriptionID,
		&p.SubscriptionStatus,
		&p.LastSubscriptionEventAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load profile", err)
	}
	return &p, nil
}

// ApplySubscription writes the plan and subscription fields of a billing
// event. Zero affected rows are classified with an existence probe so the
// caller can tell an out-of-order event from an unknown account.
func (r *ProfileRepo) ApplySubscription(ctx context.Context, upd types.SubscriptionUpdate) (types.UpdateOutcome, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles
		 SET plan = $1,
		     subscription_id = COALESCE(NULLIF($2, ''), subscription_id),
		     subscription_status = COALESCE(NULLIF($3, ''), subscription_status),
		     last_subscription_event_at = COALESCE($4::timestamptz, last_subscription_event_at),
		     updated_at = NOW()
		 WHERE id = $5
		   AND ($4::timestamptz IS NULL
		        OR last_subscription_event_at IS NULL
		        OR last_subscription_event_at <= $4::timestamptz)`,
		string(upd.Plan),
		upd.SubscriptionID,
		upd.SubscriptionStatus,
		upd.EventAt,
		upd.UserID,
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription", err)
	}
	if tag.RowsAffected() > 0 {
		return types.UpdateApplied, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`,
		upd.UserID,
	).Scan(&exists); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to check profile existence", err)
	}
	if !exists {
		return types.UpdateUnknownUser, nil
	}

	r.logger.InfoContext(ctx, "stale subscription event ignored",
		slog.String("user_id", upd.UserID),
		slog.Any("event_at", upd.EventAt),
	)
	return types.UpdateStale, nil
}

// SetPlan overrides the plan without touching subscription fields. Used by
// operator tooling.
func (r *ProfileRepo) SetPlan(ctx context.Context, userID string, plan types.PlanTier) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET plan = $1, updated_at = NOW() WHERE id = $2`,
		string(plan),
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", nil)
	}
	return nil
}
