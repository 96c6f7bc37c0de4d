package checkout

import (
	"context"
	"time"

	"github.com/fjod/go_takeout/internal/cart"
	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/keylock"
	"github.com/fjod/go_takeout/internal/repository"
	"github.com/rs/zerolog"
)

// Gateway is the payment gateway as seen by checkout.
type Gateway interface {
	CreatePaymentRequest(ctx context.Context, snapshot *domain.CartSnapshot, currency, redirectURL string) (*domain.PaymentRequest, error)
	FetchStatus(ctx context.Context, merchantPaymentID string) (domain.PaymentStatus, error)
	CancelCode(ctx context.Context, codeID string) error
}

type Repository interface {
	CreateAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error
	GetAttempt(ctx context.Context, merchantPaymentID string) (*domain.CheckoutAttempt, error)
	LatestAttempt(ctx context.Context, sessionID string, merchantID int64) (*domain.CheckoutAttempt, error)
	OpenAttempt(ctx context.Context, sessionID string, merchantID int64) (*domain.CheckoutAttempt, error)
	TransitionAttempt(ctx context.Context, merchantPaymentID string, from, to domain.AttemptState) error
	ListStaleAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*domain.CheckoutAttempt, error)
	CommitOrder(ctx context.Context, c *repository.OrderCommit) (int64, error)
}

// Carts is the part of the cart service that checkout needs. The *Locked methods expect
// the caller to hold the cart lock taken from Locks.
type Carts interface {
	Locks() *keylock.KeyLock
	SnapshotLocked(ctx context.Context, sessionID string, merchantID int64) (*domain.CartSnapshot, error)
	ClearIfFingerprintLocked(ctx context.Context, sessionID string, merchantID int64, fingerprint string) (bool, error)
	SetLastOrder(ctx context.Context, sessionID string, orderID int64) error
}

type Config struct {
	Currency    string
	RedirectURL string
	// MaxPollDuration bounds how long an attempt may wait for payment before it is aborted.
	MaxPollDuration time.Duration
	ReconcileBatch  int
}

type Service struct {
	carts   Carts
	repo    Repository
	gateway Gateway
	cfg     Config
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(carts Carts, repo Repository, gateway Gateway, cfg Config, log zerolog.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "JPY"
	}
	if cfg.MaxPollDuration <= 0 {
		cfg.MaxPollDuration = 5 * time.Minute
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = 100
	}
	return &Service{
		carts:   carts,
		repo:    repo,
		gateway: gateway,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) lock(sessionID string, merchantID int64) func() {
	return s.carts.Locks().Lock(cart.LockKey(sessionID, merchantID))
}

// cancelCode is best effort; a leftover code expires on the gateway side.
func (s *Service) cancelCode(ctx context.Context, attempt *domain.CheckoutAttempt) {
	if err := s.gateway.CancelCode(ctx, attempt.CodeID); err != nil {
		s.log.Warn().Err(err).
			Str("merchant_payment_id", attempt.MerchantPaymentID).
			Str("code_id", attempt.CodeID).
			Msg("cancel payment code failed")
	}
}

// clearAfterCommit removes the cart if it is still the one that was ordered and records
// the order id for the session. Failures are logged; the order-event consumer retries the clear.
func (s *Service) clearAfterCommit(ctx context.Context, session domain.Session, merchantID, orderID int64, fingerprint string) {
	logger := s.log.With().Str("session_id", session.ID).Int64("merchant_id", merchantID).Int64("order_id", orderID).Logger()

	if _, err := s.carts.ClearIfFingerprintLocked(ctx, session.ID, merchantID, fingerprint); err != nil {
		logger.Warn().Err(err).Msg("clear cart after commit failed")
	}
	if err := s.carts.SetLastOrder(ctx, session.ID, orderID); err != nil {
		logger.Warn().Err(err).Msg("record last order failed")
	}
}

func validate(session domain.Session, merchantID int64) error {
	if !session.IsAuthenticated() {
		return ErrNoSession
	}
	if merchantID <= 0 {
		return ErrInvalidMerchantID
	}
	return nil
}
