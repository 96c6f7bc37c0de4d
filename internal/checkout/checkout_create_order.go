package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/repository"
)

// CreateOrder places an order for a payment method settled outside the gateway. An open
// gateway checkout for the same cart is superseded first.
func (s *Service) CreateOrder(ctx context.Context, session domain.Session, merchantID int64, paymentMethod string) (int64, error) {
	if err := validate(session, merchantID); err != nil {
		return 0, err
	}
	method := strings.ToUpper(strings.TrimSpace(paymentMethod))
	if method == "" || method == domain.PaymentMethodPayPay {
		return 0, ErrInvalidPayment
	}

	unlock := s.lock(session.ID, merchantID)
	defer unlock()

	snapshot, err := s.carts.SnapshotLocked(ctx, session.ID, merchantID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if snapshot.IsEmpty() {
		return 0, ErrEmptyCart
	}

	open, err := s.repo.OpenAttempt(ctx, session.ID, merchantID)
	if err != nil && !errors.Is(err, repository.ErrAttemptNotFound) {
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if open != nil {
		if err := s.supersede(ctx, open); err != nil {
			return 0, err
		}
	}

	fingerprint := snapshot.Fingerprint()
	order := domain.NewOrderFromSnapshot(session.UserID, snapshot, domain.OrderStatusPending,
		method, s.cfg.Currency, "cart:"+fingerprint)

	return s.commit(ctx, session, merchantID, &repository.OrderCommit{
		Order:           order,
		SessionID:       session.ID,
		CartFingerprint: fingerprint,
	})
}
