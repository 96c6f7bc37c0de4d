package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_takeout/internal/cart"
	"github.com/fjod/go_takeout/internal/catalog"
	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/repository"
)

// MockGateway hands out sequential payment ids and answers status calls from a map.
type MockGateway struct {
	mu        sync.Mutex
	statuses  map[string]domain.PaymentStatus
	createErr error
	statusErr error
	created   int
	fetches   int
	cancelled []string
}

func newMockGateway() *MockGateway {
	return &MockGateway{statuses: make(map[string]domain.PaymentStatus)}
}

func (m *MockGateway) CreatePaymentRequest(_ context.Context, snapshot *domain.CartSnapshot, currency, redirectURL string) (*domain.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created++
	return &domain.PaymentRequest{
		MerchantPaymentID: fmt.Sprintf("mpid-%d", m.created),
		Amount:            snapshot.TotalPrice,
		Currency:          currency,
		Items:             snapshot.Items,
		RedirectURL:       redirectURL,
		CodeID:            fmt.Sprintf("code-%d", m.created),
		URL:               fmt.Sprintf("https://qr.example/%d", m.created),
	}, nil
}

func (m *MockGateway) FetchStatus(_ context.Context, merchantPaymentID string) (domain.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.statusErr != nil {
		return "", m.statusErr
	}
	if status, ok := m.statuses[merchantPaymentID]; ok {
		return status, nil
	}
	return domain.PaymentStatusPending, nil
}

func (m *MockGateway) CancelCode(_ context.Context, codeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, codeID)
	return nil
}

func (m *MockGateway) setStatus(merchantPaymentID string, status domain.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[merchantPaymentID] = status
}

// MockRepository keeps attempts and orders in memory with the same conflict rules as Postgres.
type MockRepository struct {
	mu        sync.Mutex
	attempts  map[string]*domain.CheckoutAttempt
	sequence  []string
	orders    map[string]*domain.Order
	nextID    int64
	createErr error
	commitErr error
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		attempts: make(map[string]*domain.CheckoutAttempt),
		orders:   make(map[string]*domain.Order),
	}
}

func (m *MockRepository) CreateAttempt(_ context.Context, attempt *domain.CheckoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, a := range m.attempts {
		if a.SessionID == attempt.SessionID && a.MerchantID == attempt.MerchantID && a.State == domain.AttemptStatePendingConfirm {
			return repository.ErrOpenAttemptExists
		}
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	attempt.UpdatedAt = attempt.CreatedAt
	stored := *attempt
	m.attempts[attempt.MerchantPaymentID] = &stored
	m.sequence = append(m.sequence, attempt.MerchantPaymentID)
	return nil
}

func (m *MockRepository) GetAttempt(_ context.Context, merchantPaymentID string) (*domain.CheckoutAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[merchantPaymentID]
	if !ok {
		return nil, repository.ErrAttemptNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockRepository) LatestAttempt(_ context.Context, sessionID string, merchantID int64) (*domain.CheckoutAttempt, error) {
	return m.find(func(a *domain.CheckoutAttempt) bool {
		return a.SessionID == sessionID && a.MerchantID == merchantID
	})
}

func (m *MockRepository) OpenAttempt(_ context.Context, sessionID string, merchantID int64) (*domain.CheckoutAttempt, error) {
	return m.find(func(a *domain.CheckoutAttempt) bool {
		return a.SessionID == sessionID && a.MerchantID == merchantID && a.State == domain.AttemptStatePendingConfirm
	})
}

// find returns the most recently created attempt matching fn.
func (m *MockRepository) find(fn func(*domain.CheckoutAttempt) bool) (*domain.CheckoutAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sequence) - 1; i >= 0; i-- {
		a := m.attempts[m.sequence[i]]
		if fn(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrAttemptNotFound
}

func (m *MockRepository) TransitionAttempt(_ context.Context, merchantPaymentID string, from, to domain.AttemptState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[merchantPaymentID]
	if !ok || a.State != from || !domain.CanTransitionTo(from, to) {
		return repository.ErrStateConflict
	}
	a.State = to
	return nil
}

func (m *MockRepository) ListStaleAttempts(_ context.Context, cutoff time.Time, limit int) ([]*domain.CheckoutAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []*domain.CheckoutAttempt
	for _, id := range m.sequence {
		a := m.attempts[id]
		if a.State == domain.AttemptStatePendingConfirm && a.CreatedAt.Before(cutoff) && len(stale) < limit {
			cp := *a
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

func (m *MockRepository) CommitOrder(_ context.Context, c *repository.OrderCommit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return 0, m.commitErr
	}

	var attempt *domain.CheckoutAttempt
	if c.MerchantPaymentID != "" {
		a, ok := m.attempts[c.MerchantPaymentID]
		if !ok {
			return 0, repository.ErrAttemptNotFound
		}
		switch a.State {
		case domain.AttemptStateCommitted:
			return 0, &repository.DuplicateOrderError{OrderID: *a.OrderID}
		case domain.AttemptStateAborted:
			return 0, repository.ErrStateConflict
		}
		attempt = a
	}
	if existing, ok := m.orders[c.Order.IdempotencyKey]; ok {
		return 0, &repository.DuplicateOrderError{OrderID: existing.ID}
	}

	m.nextID++
	order := *c.Order
	order.ID = m.nextID
	m.orders[order.IdempotencyKey] = &order
	if attempt != nil {
		id := order.ID
		attempt.State = domain.AttemptStateCommitted
		attempt.OrderID = &id
	}
	return order.ID, nil
}

func (m *MockRepository) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *MockRepository) orderByKey(key string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[key]
}

// backdate moves every attempt's creation time into the past.
func (m *MockRepository) backdate(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		a.CreatedAt = a.CreatedAt.Add(-d)
	}
}

// unreachableStore fails every cart read, as a cart store outage would.
type unreachableStore struct {
	*cart.MemoryStore
	err error
}

func (u *unreachableStore) Load(context.Context, string, int64) (*domain.Cart, error) {
	return nil, u.err
}

type stubCatalog map[int64]*catalog.Item

func (s stubCatalog) GetItem(_ context.Context, merchantID, itemID int64) (*catalog.Item, error) {
	item, ok := s[itemID]
	if !ok || item.MerchantID != merchantID {
		return nil, catalog.ErrNotFound
	}
	return item, nil
}
