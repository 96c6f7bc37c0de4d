package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/repository"
)

// Finalize turns a paid checkout attempt into an order. When merchantPaymentID is empty the
// latest attempt of the session cart is used.
//
// The payment status is verified with one gateway call. The cart must still match the
// snapshot the payment was requested for. A repeated call for a committed attempt returns
// the existing order id together with ErrAlreadyFinalized.
func (s *Service) Finalize(ctx context.Context, session domain.Session, merchantID int64, merchantPaymentID string) (int64, error) {
	if err := validate(session, merchantID); err != nil {
		return 0, err
	}
	unlock := s.lock(session.ID, merchantID)
	defer unlock()

	snapshot, err := s.carts.SnapshotLocked(ctx, session.ID, merchantID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	attempt, err := s.findAttempt(ctx, session, merchantID, merchantPaymentID)
	if err != nil {
		if errors.Is(err, ErrNoCheckout) && snapshot.IsEmpty() {
			return 0, ErrEmptyCart
		}
		return 0, err
	}

	if attempt.State == domain.AttemptStateCommitted {
		matches := snapshot.Fingerprint() == attempt.Fingerprint
		if merchantPaymentID == "" && !snapshot.IsEmpty() && !matches {
			// A newer cart without a checkout of its own.
			return 0, ErrNoCheckout
		}
		if matches {
			s.clearCart(ctx, session, merchantID, attempt.Fingerprint)
		}
		return committedOrderID(attempt), ErrAlreadyFinalized
	}

	if snapshot.IsEmpty() {
		return 0, ErrEmptyCart
	}
	if attempt.State == domain.AttemptStateAborted {
		return 0, ErrCheckoutAborted
	}
	if snapshot.Fingerprint() != attempt.Fingerprint || snapshot.TotalPrice != attempt.Amount {
		return 0, ErrCartChanged
	}

	status, err := s.gateway.FetchStatus(ctx, attempt.MerchantPaymentID)
	if err != nil {
		return 0, err
	}
	switch status {
	case domain.PaymentStatusCompleted:
	case domain.PaymentStatusFailed, domain.PaymentStatusExpired:
		if err := s.abort(ctx, attempt); err != nil {
			return 0, err
		}
		s.log.Info().
			Str("merchant_payment_id", attempt.MerchantPaymentID).
			Stringer("payment_status", status).
			Msg("checkout aborted by gateway status")
		return 0, fmt.Errorf("%w: %s", ErrPaymentNotCompleted, status)
	default:
		return 0, ErrPaymentPending
	}

	order := domain.NewOrderFromSnapshot(session.UserID, snapshot, domain.OrderStatusReceived,
		domain.PaymentMethodPayPay, attempt.Currency, attempt.MerchantPaymentID)

	return s.commit(ctx, session, merchantID, &repository.OrderCommit{
		Order:             order,
		MerchantPaymentID: attempt.MerchantPaymentID,
		SessionID:         session.ID,
		CartFingerprint:   attempt.Fingerprint,
	})
}

func (s *Service) findAttempt(ctx context.Context, session domain.Session, merchantID int64, merchantPaymentID string) (*domain.CheckoutAttempt, error) {
	var (
		attempt *domain.CheckoutAttempt
		err     error
	)
	if merchantPaymentID != "" {
		attempt, err = s.repo.GetAttempt(ctx, merchantPaymentID)
	} else {
		attempt, err = s.repo.LatestAttempt(ctx, session.ID, merchantID)
	}
	if errors.Is(err, repository.ErrAttemptNotFound) {
		return nil, ErrNoCheckout
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	// Another session's payment id is reported as unknown.
	if attempt.SessionID != session.ID || attempt.MerchantID != merchantID {
		return nil, ErrNoCheckout
	}
	return attempt, nil
}

// commit persists the order and clears the cart it was built from. Must be called with the
// cart lock held.
func (s *Service) commit(ctx context.Context, session domain.Session, merchantID int64, c *repository.OrderCommit) (int64, error) {
	orderID, err := s.repo.CommitOrder(ctx, c)
	var dup *repository.DuplicateOrderError
	switch {
	case err == nil:
	case errors.As(err, &dup):
		s.clearCart(ctx, session, merchantID, c.CartFingerprint)
		return dup.OrderID, ErrAlreadyFinalized
	case errors.Is(err, repository.ErrStateConflict):
		return 0, ErrCheckoutAborted
	case errors.Is(err, repository.ErrAttemptNotFound):
		return 0, ErrNoCheckout
	default:
		s.log.Error().Err(err).Str("session_id", session.ID).Int64("merchant_id", merchantID).Msg("commit order failed")
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.log.Info().
		Int64("order_id", orderID).
		Str("session_id", session.ID).
		Int64("merchant_id", merchantID).
		Str("payment_method", c.Order.PaymentMethod).
		Int64("total_amount", c.Order.TotalAmount).
		Msg("order committed")

	s.clearAfterCommit(ctx, session, merchantID, orderID, c.CartFingerprint)
	return orderID, nil
}

func (s *Service) clearCart(ctx context.Context, session domain.Session, merchantID int64, fingerprint string) {
	if _, err := s.carts.ClearIfFingerprintLocked(ctx, session.ID, merchantID, fingerprint); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Int64("merchant_id", merchantID).Msg("clear finalized cart failed")
	}
}

func committedOrderID(attempt *domain.CheckoutAttempt) int64 {
	if attempt.OrderID == nil {
		return 0
	}
	return *attempt.OrderID
}
