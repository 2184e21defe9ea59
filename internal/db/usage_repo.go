package db

import (
	"context"
	"time"

	"stockbrief/internal/types"
)

// UsageLedgerRepo is the append-only record of billable operations. Entries
// carry a client-generated id so a replayed append is a no-op.
type UsageLedgerRepo struct {
	db DBTX
}

// NewUsageLedgerRepo creates a UsageLedgerRepo.
func NewUsageLedgerRepo(db DBTX) *UsageLedgerRepo {
	return &UsageLedgerRepo{db: db}
}

// CountSince counts entries for userID and action with created_at >= since.
func (r *UsageLedgerRepo) CountSince(ctx context.Context, userID string, action types.UsageAction, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM usage_logs
		 WHERE user_id = $1
		   AND action = $2
		   AND created_at >= $3`,
		userID,
		string(action),
		since,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count usage", err)
	}
	return count, nil
}

// Append records one entry. An entry whose id already exists is ignored.
func (r *UsageLedgerRepo) Append(ctx context.Context, entry types.UsageLogEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_logs (id, user_id, action, symbol, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		 ON CONFLICT (id) DO NOTHING`,
		entry.ID,
		entry.UserID,
		string(entry.Action),
		entry.Symbol,
		entry.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalLedgerWrite, "failed to append usage entry", err)
	}
	return nil
}

// ListRecent returns up to limit entries for userID, newest first.
func (r *UsageLedgerRepo) ListRecent(ctx context.Context, userID string, limit int) ([]types.UsageLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, action, COALESCE(symbol, ''), created_at
		 FROM usage_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list usage", err)
	}
	defer rows.Close()

	var entries []types.UsageLogEntry
	for rows.Next() {
		var (
			e      types.UsageLogEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &action, &e.Symbol, &e.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan usage entry", err)
		}
		e.Action = types.UsageAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate usage", err)
	}
	return entries, nil
}
