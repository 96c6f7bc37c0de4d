package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
)

type attemptRow struct {
	domain.CheckoutAttempt
	SnapshotJSON []byte `db:"cart_snapshot"`
}

func (a *attemptRow) toDomain() (*domain.CheckoutAttempt, error) {
	out := a.CheckoutAttempt
	var snapshot domain.CartSnapshot
	if err := json.Unmarshal(a.SnapshotJSON, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	out.Snapshot = &snapshot
	return &out, nil
}

const attemptColumns = `merchant_payment_id, session_id, user_id, merchant_id, amount, currency, cart_snapshot,
	fingerprint, code_id, url, deeplink, redirect_url, state, order_id, created_at, updated_at`

func (r *Repository) CreateAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	snapshotJSON, err := json.Marshal(attempt.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}

	query := `INSERT INTO checkout_attempts (merchant_payment_id, session_id, user_id, merchant_id, amount, currency,
	              cart_snapshot, fingerprint, code_id, url, deeplink, redirect_url, state, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err = r.db.QueryRowxContext(ctx, query,
		attempt.MerchantPaymentID,
		attempt.SessionID,
		attempt.UserID,
		attempt.MerchantID,
		attempt.Amount,
		attempt.Currency,
		snapshotJSON,
		attempt.Fingerprint,
		attempt.CodeID,
		attempt.URL,
		attempt.Deeplink,
		attempt.RedirectURL,
		attempt.State,
	).Scan(&attempt.CreatedAt, &attempt.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOpenAttemptExists
		}
		return fmt.Errorf("insert checkout attempt: %w", err)
	}
	return nil
}

func (r *Repository) GetAttempt(ctx context.Context, merchantPaymentID string) (*domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts WHERE merchant_payment_id = $1`
	return r.getAttempt(ctx, query, merchantPaymentID)
}

// LatestAttempt returns the newest attempt of the session cart in any state.
func (r *Repository) LatestAttempt(ctx context.Context, sessionID string, merchantID int64) (*domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts
	          WHERE session_id = $1 AND merchant_id = $2
	          ORDER BY created_at DESC LIMIT 1`
	return r.getAttempt(ctx, query, sessionID, merchantID)
}

// OpenAttempt returns the PENDING_CONFIRM attempt of the session cart.
func (r *Repository) OpenAttempt(ctx context.Context, sessionID string, merchantID int64) (*domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts
	          WHERE session_id = $1 AND merchant_id = $2 AND state = $3`
	return r.getAttempt(ctx, query, sessionID, merchantID, domain.AttemptStatePendingConfirm)
}

func (r *Repository) getAttempt(ctx context.Context, query string, args ...any) (*domain.CheckoutAttempt, error) {
	var row attemptRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout attempt: %w", err)
	}
	return row.toDomain()
}

// TransitionAttempt moves an attempt from one state to another only if it is still in from.
func (r *Repository) TransitionAttempt(ctx context.Context, merchantPaymentID string, from, to domain.AttemptState) error {
	if !domain.CanTransitionTo(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}

	query := `UPDATE checkout_attempts SET state = $1, updated_at = NOW()
	          WHERE merchant_payment_id = $2 AND state = $3`
	res, err := r.db.ExecContext(ctx, query, to, merchantPaymentID, from)
	if err != nil {
		return fmt.Errorf("update checkout attempt state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

// ListStaleAttempts returns PENDING_CONFIRM attempts created before cutoff, oldest first.
func (r *Repository) ListStaleAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts
	          WHERE state = $1 AND created_at < $2
	          ORDER BY created_at LIMIT $3`

	var rows []attemptRow
	if err := r.db.SelectContext(ctx, &rows, query, domain.AttemptStatePendingConfirm, cutoff, limit); err != nil {
		return nil, fmt.Errorf("query stale attempts: %w", err)
	}

	attempts := make([]*domain.CheckoutAttempt, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
