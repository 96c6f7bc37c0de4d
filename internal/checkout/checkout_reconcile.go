package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/go_takeout/internal/domain"
)

// ReconcileStale aborts attempts that waited longer than MaxPollDuration. Completed payments
// are left for a late finalize and fetch errors leave the attempt for the next run.
// Returns the number of aborted attempts.
func (s *Service) ReconcileStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.MaxPollDuration)
	attempts, err := s.repo.ListStaleAttempts(ctx, cutoff, s.cfg.ReconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale attempts: %w", err)
	}

	aborted := 0
	for _, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return aborted, err
		}
		if s.reconcile(ctx, attempt) {
			aborted++
		}
	}
	if aborted > 0 {
		s.log.Info().Int("aborted", aborted).Int("stale", len(attempts)).Msg("stale checkout attempts reconciled")
	}
	return aborted, nil
}

func (s *Service) reconcile(ctx context.Context, stale *domain.CheckoutAttempt) bool {
	unlock := s.lock(stale.SessionID, stale.MerchantID)
	defer unlock()

	logger := s.log.With().Str("merchant_payment_id", stale.MerchantPaymentID).Logger()

	attempt, err := s.repo.GetAttempt(ctx, stale.MerchantPaymentID)
	if err != nil {
		logger.Warn().Err(err).Msg("reload stale attempt failed")
		return false
	}
	if attempt.State != domain.AttemptStatePendingConfirm {
		return false
	}

	status, err := s.gateway.FetchStatus(ctx, attempt.MerchantPaymentID)
	if err != nil {
		logger.Warn().Err(err).Msg("fetch status of stale attempt failed")
		return false
	}
	if status == domain.PaymentStatusCompleted {
		logger.Info().Msg("stale attempt is paid, waiting for finalize")
		return false
	}

	if err := s.abort(ctx, attempt); err != nil {
		logger.Warn().Err(err).Msg("abort stale attempt failed")
		return false
	}
	logger.Info().Stringer("payment_status", status).Msg("stale checkout attempt aborted")
	return true
}
