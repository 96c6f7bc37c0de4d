package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/repository"
)

// StartCheckout issues a payment request for the current cart. An open attempt for the same
// cart contents is reused; an open attempt for older contents is superseded.
func (s *Service) StartCheckout(ctx context.Context, session domain.Session, merchantID int64) (*domain.PaymentRequest, error) {
	if err := validate(session, merchantID); err != nil {
		return nil, err
	}
	unlock := s.lock(session.ID, merchantID)
	defer unlock()

	snapshot, err := s.carts.SnapshotLocked(ctx, session.ID, merchantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}
	fingerprint := snapshot.Fingerprint()

	open, err := s.repo.OpenAttempt(ctx, session.ID, merchantID)
	if err != nil && !errors.Is(err, repository.ErrAttemptNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if open != nil {
		fresh := s.now().Sub(open.CreatedAt) < s.cfg.MaxPollDuration
		if open.Fingerprint == fingerprint && fresh {
			s.log.Info().Str("merchant_payment_id", open.MerchantPaymentID).Msg("reusing open checkout attempt")
			return open.PaymentRequest(), nil
		}
		if err := s.supersede(ctx, open); err != nil {
			return nil, err
		}
	}

	req, err := s.gateway.CreatePaymentRequest(ctx, snapshot, s.cfg.Currency, s.cfg.RedirectURL)
	if err != nil {
		return nil, err
	}

	attempt := &domain.CheckoutAttempt{
		MerchantPaymentID: req.MerchantPaymentID,
		SessionID:         session.ID,
		UserID:            session.UserID,
		MerchantID:        merchantID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Snapshot:          snapshot,
		Fingerprint:       fingerprint,
		CodeID:            req.CodeID,
		URL:               req.URL,
		Deeplink:          req.Deeplink,
		RedirectURL:       req.RedirectURL,
		State:             domain.AttemptStatePendingConfirm,
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		s.cancelCode(ctx, attempt)
		return nil, fmt.Errorf("%w: persist checkout attempt: %v", ErrStorageFailure, err)
	}

	s.log.Info().
		Str("session_id", session.ID).
		Int64("merchant_id", merchantID).
		Str("merchant_payment_id", attempt.MerchantPaymentID).
		Int64("amount", attempt.Amount).
		Msg("checkout started")
	return req, nil
}

// supersede aborts an open attempt before a new one replaces it. A payment that already
// completed is never aborted.
func (s *Service) supersede(ctx context.Context, open *domain.CheckoutAttempt) error {
	status, err := s.gateway.FetchStatus(ctx, open.MerchantPaymentID)
	if err != nil {
		return fmt.Errorf("check superseded payment: %w", err)
	}
	if status == domain.PaymentStatusCompleted {
		return fmt.Errorf("%w: merchant payment id %s", ErrPaymentCompleted, open.MerchantPaymentID)
	}

	if err := s.abort(ctx, open); err != nil {
		return err
	}
	s.log.Info().Str("merchant_payment_id", open.MerchantPaymentID).Msg("checkout attempt superseded")
	return nil
}

// abort moves an open attempt to ABORTED and cancels its code. An attempt that is no longer
// open is left alone.
func (s *Service) abort(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	err := s.repo.TransitionAttempt(ctx, attempt.MerchantPaymentID, domain.AttemptStatePendingConfirm, domain.AttemptStateAborted)
	if err != nil && !errors.Is(err, repository.ErrStateConflict) {
		return fmt.Errorf("%w: abort checkout attempt: %v", ErrStorageFailure, err)
	}
	if err == nil {
		attempt.State = domain.AttemptStateAborted
	}
	s.cancelCode(ctx, attempt)
	return nil
}

// Abandon aborts the open checkout of the session cart. The cart is left intact. A payment
// that already completed is kept for finalize and reported as ErrPaymentCompleted.
func (s *Service) Abandon(ctx context.Context, session domain.Session, merchantID int64) error {
	if err := validate(session, merchantID); err != nil {
		return err
	}
	unlock := s.lock(session.ID, merchantID)
	defer unlock()

	open, err := s.repo.OpenAttempt(ctx, session.ID, merchantID)
	if errors.Is(err, repository.ErrAttemptNotFound) {
		return ErrNoCheckout
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	status, err := s.gateway.FetchStatus(ctx, open.MerchantPaymentID)
	if err != nil {
		return fmt.Errorf("check abandoned payment: %w", err)
	}
	if status == domain.PaymentStatusCompleted {
		return fmt.Errorf("%w: merchant payment id %s", ErrPaymentCompleted, open.MerchantPaymentID)
	}

	if err := s.abort(ctx, open); err != nil {
		return err
	}
	s.log.Info().Str("merchant_payment_id", open.MerchantPaymentID).Msg("checkout abandoned")
	return nil
}

// Status is one poll tick: a single gateway call classified into the external status set.
func (s *Service) Status(ctx context.Context, merchantPaymentID string) (domain.PaymentStatus, error) {
	if merchantPaymentID == "" {
		return "", ErrNoCheckout
	}
	return s.gateway.FetchStatus(ctx, merchantPaymentID)
}
