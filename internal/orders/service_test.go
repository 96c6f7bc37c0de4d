package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	orders    map[int64]*domain.Order
	listErr   error
	updateErr error
	lastLimit int
}

func (m *MockRepository) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockRepository) ListOrdersByUser(_ context.Context, userID int64, limit int) ([]*domain.Order, error) {
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockRepository) ListOrdersByMerchant(_ context.Context, merchantID int64, limit int) ([]*domain.Order, error) {
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.MerchantID == merchantID && o.Status != domain.OrderStatusCanceled {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockRepository) UpdateOrderStatus(_ context.Context, orderID, merchantID int64, from, to domain.OrderStatus) (time.Time, error) {
	if m.updateErr != nil {
		return time.Time{}, m.updateErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.MerchantID != merchantID || o.Status != from {
		return time.Time{}, repository.ErrStateConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return o.UpdatedAt, nil
}

func setupService() (*Service, *MockRepository) {
	repo := &MockRepository{orders: map[int64]*domain.Order{
		1: {ID: 1, UserID: 42, MerchantID: 7, Status: domain.OrderStatusReceived, TotalAmount: 1300},
		2: {ID: 2, UserID: 42, MerchantID: 7, Status: domain.OrderStatusPending, TotalAmount: 500},
		3: {ID: 3, UserID: 99, MerchantID: 8, Status: domain.OrderStatusCompleted, TotalAmount: 900},
	}}
	return NewService(repo, zerolog.Nop()), repo
}

func TestHistory(t *testing.T) {
	svc, repo := setupService()

	orders, err := svc.History(context.Background(), 42, 0)

	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, DefaultHistoryLimit, repo.lastLimit)
}

func TestMerchantOrders(t *testing.T) {
	svc, repo := setupService()

	orders, err := svc.MerchantOrders(context.Background(), 7, 500)

	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, DefaultMerchantLimit, repo.lastLimit)
	for _, o := range orders {
		assert.Equal(t, int64(7), o.MerchantID)
	}
}

func TestMerchantOrders_InvalidMerchant(t *testing.T) {
	svc, _ := setupService()

	_, err := svc.MerchantOrders(context.Background(), 0, 10)

	assert.ErrorIs(t, err, ErrInvalidMerchant)
}

func TestMerchantOrders_RepositoryError(t *testing.T) {
	svc, repo := setupService()
	repo.listErr = errors.New("connection refused")

	_, err := svc.MerchantOrders(context.Background(), 7, 10)

	require.Error(t, err)
	assert.Equal(t, 10, repo.lastLimit)
}

func TestHistory_RepositoryError(t *testing.T) {
	svc, repo := setupService()
	repo.listErr = errors.New("connection refused")

	_, err := svc.History(context.Background(), 42, 10)

	assert.Error(t, err)
	assert.Equal(t, 10, repo.lastLimit)
}

func TestGet_OwnOrderOnly(t *testing.T) {
	svc, _ := setupService()
	ctx := context.Background()

	order, err := svc.Get(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), order.TotalAmount)

	_, err = svc.Get(ctx, 42, 3)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.Get(ctx, 42, 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatus_FollowsStateMachine(t *testing.T) {
	svc, _ := setupService()
	ctx := context.Background()

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusAccepted,
		domain.OrderStatusPreparing,
		domain.OrderStatusAlmostReady,
		domain.OrderStatusReadyForPickup,
		domain.OrderStatusCompleted,
	} {
		order, err := svc.UpdateStatus(ctx, 7, 1, next)
		require.NoError(t, err, next)
		assert.Equal(t, next, order.Status)
	}

	_, err := svc.UpdateStatus(ctx, 7, 1, domain.OrderStatusCanceled)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	svc, _ := setupService()
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, 7, 2, domain.OrderStatus("COOKING"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, 7, 2, domain.OrderStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = svc.UpdateStatus(ctx, 7, 3, domain.OrderStatusCanceled)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	order, err := svc.UpdateStatus(ctx, 7, 2, domain.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, order.Status)
}

func TestUpdateStatus_ConcurrentChange(t *testing.T) {
	svc, repo := setupService()
	repo.updateErr = repository.ErrStateConflict

	_, err := svc.UpdateStatus(context.Background(), 7, 1, domain.OrderStatusAccepted)

	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}
