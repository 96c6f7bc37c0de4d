package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_takeout/internal/catalog"
	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/keylock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const MaxQuantity = 99

var (
	ErrInvalidItem     = errors.New("item does not exist for this merchant")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoSession       = errors.New("no authenticated session")
)

// Service mutates session carts. Every operation on one (session, merchant) pair runs
// under that pair's lock, so concurrent requests cannot lose updates.
type Service struct {
	store   Store
	catalog catalog.Lookup
	locks   *keylock.KeyLock
	log     zerolog.Logger
}

func NewService(store Store, lookup catalog.Lookup, locks *keylock.KeyLock, log zerolog.Logger) *Service {
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		store:   store,
		catalog: lookup,
		locks:   locks,
		log:     log,
	}
}

// LockKey is the mutual exclusion key shared with checkout for one session cart.
func LockKey(sessionID string, merchantID int64) string {
	return cartKey(sessionID, merchantID)
}

// Locks exposes the lock set so that checkout can serialize with cart mutations.
func (s *Service) Locks() *keylock.KeyLock {
	return s.locks
}

// AddItem adds quantity of itemID with the catalog's name and price and returns the
// cart's total item count.
func (s *Service) AddItem(ctx context.Context, session domain.Session, merchantID, itemID int64, quantity int) (int, error) {
	if err := validateScope(session, merchantID); err != nil {
		return 0, err
	}
	if quantity < 1 || quantity > MaxQuantity {
		return 0, ErrInvalidQuantity
	}

	item, err := s.catalog.GetItem(ctx, merchantID, itemID)
	if errors.Is(err, catalog.ErrNotFound) {
		return 0, fmt.Errorf("%w: item %d merchant %d", ErrInvalidItem, itemID, merchantID)
	}
	if err != nil {
		return 0, fmt.Errorf("catalog lookup failed: %w", err)
	}
	if !item.Available {
		return 0, fmt.Errorf("%w: item %d is not available", ErrInvalidItem, itemID)
	}

	unlock := s.locks.Lock(LockKey(session.ID, merchantID))
	defer unlock()

	c, err := s.loadOrNew(ctx, session.ID, merchantID)
	if err != nil {
		return 0, err
	}
	if c.Quantity(itemID)+quantity > MaxQuantity {
		return 0, fmt.Errorf("%w: item %d would exceed %d", ErrInvalidQuantity, itemID, MaxQuantity)
	}
	c.Add(domain.LineItem{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  quantity,
	})
	if err := s.save(ctx, c); err != nil {
		return 0, err
	}

	s.log.Debug().
		Str("session_id", session.ID).
		Int64("merchant_id", merchantID).
		Int64("item_id", itemID).
		Int("quantity", quantity).
		Msg("item added to cart")
	return c.TotalQuantity(), nil
}

// UpdateQuantity sets the quantity of a present line. Quantity <= 0 removes the line;
// an absent line is a no-op.
func (s *Service) UpdateQuantity(ctx context.Context, session domain.Session, merchantID, itemID int64, quantity int) error {
	if err := validateScope(session, merchantID); err != nil {
		return err
	}
	if quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx, session.ID, merchantID, func(c *domain.Cart) bool {
		return c.SetQuantity(itemID, quantity)
	})
}

// RemoveItem removes a line if present.
func (s *Service) RemoveItem(ctx context.Context, session domain.Session, merchantID, itemID int64) error {
	if err := validateScope(session, merchantID); err != nil {
		return err
	}
	return s.mutate(ctx, session.ID, merchantID, func(c *domain.Cart) bool {
		return c.Remove(itemID)
	})
}

// Clear empties the cart of one merchant. Other merchants' carts are untouched.
func (s *Service) Clear(ctx context.Context, session domain.Session, merchantID int64) error {
	if err := validateScope(session, merchantID); err != nil {
		return err
	}
	unlock := s.locks.Lock(LockKey(session.ID, merchantID))
	defer unlock()

	return s.ClearLocked(ctx, session.ID, merchantID)
}

// ClearLocked deletes the cart. The caller must hold the cart lock.
func (s *Service) ClearLocked(ctx context.Context, sessionID string, merchantID int64) error {
	if err := s.store.Delete(ctx, sessionID, merchantID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Snapshot returns an immutable copy of the cart with totals. A missing cart yields an
// empty snapshot.
func (s *Service) Snapshot(ctx context.Context, session domain.Session, merchantID int64) (*domain.CartSnapshot, error) {
	if err := validateScope(session, merchantID); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(LockKey(session.ID, merchantID))
	defer unlock()

	return s.SnapshotLocked(ctx, session.ID, merchantID)
}

// SnapshotLocked is Snapshot for callers that already hold the cart lock.
func (s *Service) SnapshotLocked(ctx context.Context, sessionID string, merchantID int64) (*domain.CartSnapshot, error) {
	c, err := s.store.Load(ctx, sessionID, merchantID)
	if errors.Is(err, ErrCartNotFound) {
		return &domain.CartSnapshot{SessionID: sessionID, MerchantID: merchantID, CapturedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c.Snapshot(), nil
}

// ClearIfFingerprint deletes the cart only while it still matches fingerprint. It reports
// whether the cart was deleted.
func (s *Service) ClearIfFingerprint(ctx context.Context, sessionID string, merchantID int64, fingerprint string) (bool, error) {
	unlock := s.locks.Lock(LockKey(sessionID, merchantID))
	defer unlock()

	return s.ClearIfFingerprintLocked(ctx, sessionID, merchantID, fingerprint)
}

// ClearIfFingerprintLocked is ClearIfFingerprint for callers holding the cart lock.
func (s *Service) ClearIfFingerprintLocked(ctx context.Context, sessionID string, merchantID int64, fingerprint string) (bool, error) {
	snapshot, err := s.SnapshotLocked(ctx, sessionID, merchantID)
	if err != nil {
		return false, err
	}
	if snapshot.IsEmpty() || snapshot.Fingerprint() != fingerprint {
		return false, nil
	}
	if err := s.ClearLocked(ctx, sessionID, merchantID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) SetLastOrder(ctx context.Context, sessionID string, orderID int64) error {
	return s.store.SetLastOrder(ctx, sessionID, orderID)
}

// TakeLastOrder returns the last finalized order id of the session exactly once.
func (s *Service) TakeLastOrder(ctx context.Context, session domain.Session) (int64, error) {
	if session.ID == "" {
		return 0, ErrInvalidArgument
	}
	return s.store.TakeLastOrder(ctx, session.ID)
}

func (s *Service) mutate(ctx context.Context, sessionID string, merchantID int64, fn func(*domain.Cart) bool) error {
	unlock := s.locks.Lock(LockKey(sessionID, merchantID))
	defer unlock()

	c, err := s.store.Load(ctx, sessionID, merchantID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if !fn(c) {
		return nil
	}
	if c.IsEmpty() {
		return s.ClearLocked(ctx, sessionID, merchantID)
	}
	return s.save(ctx, c)
}

func (s *Service) loadOrNew(ctx context.Context, sessionID string, merchantID int64) (*domain.Cart, error) {
	c, err := s.store.Load(ctx, sessionID, merchantID)
	if errors.Is(err, ErrCartNotFound) {
		now := time.Now()
		return &domain.Cart{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			MerchantID: merchantID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *domain.Cart) error {
	c.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func validateScope(session domain.Session, merchantID int64) error {
	if session.ID == "" {
		return fmt.Errorf("%w: missing session", ErrInvalidArgument)
	}
	if !session.IsAuthenticated() {
		return ErrNoSession
	}
	if merchantID <= 0 {
		return fmt.Errorf("%w: merchant id must be positive", ErrInvalidArgument)
	}
	return nil
}
