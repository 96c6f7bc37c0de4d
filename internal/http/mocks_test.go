package http

import (
	"context"

	"github.com/fjod/go_takeout/internal/domain"
)

type MockCartService struct {
	Count       int
	SnapshotVal *domain.CartSnapshot
	LastOrder   int64
	Err         error

	LastSession  domain.Session
	LastMerchant int64
	LastItem     int64
	LastQuantity int
}

func (m *MockCartService) AddItem(_ context.Context, session domain.Session, merchantID, itemID int64, quantity int) (int, error) {
	m.LastSession, m.LastMerchant, m.LastItem, m.LastQuantity = session, merchantID, itemID, quantity
	return m.Count, m.Err
}

func (m *MockCartService) UpdateQuantity(_ context.Context, session domain.Session, merchantID, itemID int64, quantity int) error {
	m.LastSession, m.LastMerchant, m.LastItem, m.LastQuantity = session, merchantID, itemID, quantity
	return m.Err
}

func (m *MockCartService) RemoveItem(_ context.Context, session domain.Session, merchantID, itemID int64) error {
	m.LastSession, m.LastMerchant, m.LastItem = session, merchantID, itemID
	return m.Err
}

func (m *MockCartService) Clear(_ context.Context, session domain.Session, merchantID int64) error {
	m.LastSession, m.LastMerchant = session, merchantID
	return m.Err
}

func (m *MockCartService) Snapshot(_ context.Context, session domain.Session, merchantID int64) (*domain.CartSnapshot, error) {
	m.LastSession, m.LastMerchant = session, merchantID
	if m.Err != nil {
		return nil, m.Err
	}
	if m.SnapshotVal == nil {
		return &domain.CartSnapshot{SessionID: session.ID, MerchantID: merchantID, Items: []domain.LineItem{}}, nil
	}
	return m.SnapshotVal, nil
}

func (m *MockCartService) TakeLastOrder(_ context.Context, session domain.Session) (int64, error) {
	m.LastSession = session
	return m.LastOrder, m.Err
}

type MockCheckoutService struct {
	Request   *domain.PaymentRequest
	StatusVal domain.PaymentStatus
	OrderID   int64
	Err       error

	LastSession           domain.Session
	LastMerchantPaymentID string
	LastPaymentMethod     string
}

func (m *MockCheckoutService) StartCheckout(_ context.Context, session domain.Session, _ int64) (*domain.PaymentRequest, error) {
	m.LastSession = session
	return m.Request, m.Err
}

func (m *MockCheckoutService) Abandon(_ context.Context, session domain.Session, _ int64) error {
	m.LastSession = session
	return m.Err
}

func (m *MockCheckoutService) Status(_ context.Context, merchantPaymentID string) (domain.PaymentStatus, error) {
	m.LastMerchantPaymentID = merchantPaymentID
	return m.StatusVal, m.Err
}

func (m *MockCheckoutService) Finalize(_ context.Context, session domain.Session, _ int64, merchantPaymentID string) (int64, error) {
	m.LastSession = session
	m.LastMerchantPaymentID = merchantPaymentID
	return m.OrderID, m.Err
}

func (m *MockCheckoutService) CreateOrder(_ context.Context, session domain.Session, _ int64, paymentMethod string) (int64, error) {
	m.LastSession = session
	m.LastPaymentMethod = paymentMethod
	return m.OrderID, m.Err
}

type MockOrderService struct {
	Orders []*domain.Order
	Order  *domain.Order
	Err    error

	LastLimit    int
	LastMerchant int64
	LastNext     domain.OrderStatus
}

func (m *MockOrderService) MerchantOrders(_ context.Context, merchantID int64, limit int) ([]*domain.Order, error) {
	m.LastMerchant = merchantID
	m.LastLimit = limit
	return m.Orders, m.Err
}

func (m *MockOrderService) History(_ context.Context, _ int64, limit int) ([]*domain.Order, error) {
	m.LastLimit = limit
	return m.Orders, m.Err
}

func (m *MockOrderService) Get(context.Context, int64, int64) (*domain.Order, error) {
	return m.Order, m.Err
}

func (m *MockOrderService) UpdateStatus(_ context.Context, _, _ int64, next domain.OrderStatus) (*domain.Order, error) {
	m.LastNext = next
	return m.Order, m.Err
}
