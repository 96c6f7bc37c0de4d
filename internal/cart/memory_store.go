package cart

import (
	"context"
	"sync"

	"github.com/fjod/go_takeout/internal/domain"
)

// MemoryStore implements Store in process memory. Carts do not expire.
type MemoryStore struct {
	mu         sync.RWMutex
	carts      map[string]*domain.Cart
	lastOrders map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:      make(map[string]*domain.Cart),
		lastOrders: make(map[string]int64),
	}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string, merchantID int64) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[cartKey(sessionID, merchantID)]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (s *MemoryStore) Save(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[cartKey(cart.SessionID, cart.MerchantID)] = cloneCart(cart)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, merchantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, cartKey(sessionID, merchantID))
	return nil
}

func (s *MemoryStore) SetLastOrder(_ context.Context, sessionID string, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastOrders[sessionID] = orderID
	return nil
}

func (s *MemoryStore) TakeLastOrder(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orderID, ok := s.lastOrders[sessionID]
	if !ok {
		return 0, ErrNoLastOrder
	}
	delete(s.lastOrders, sessionID)
	return orderID, nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = make([]domain.LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
