package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/repository"
	"github.com/rs/zerolog"
)

const (
	DefaultHistoryLimit = 50
	// DefaultMerchantLimit bounds the store order list.
	DefaultMerchantLimit = 200
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrInvalidMerchant = errors.New("invalid merchant")
)

type Repository interface {
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]*domain.Order, error)
	ListOrdersByMerchant(ctx context.Context, merchantID int64, limit int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, merchantID int64, from, to domain.OrderStatus) (time.Time, error)
}

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// History returns the user's orders, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*domain.Order, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	orders, err := s.repo.ListOrdersByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// MerchantOrders returns the store's open and finished orders, newest first. Canceled
// orders are left out.
func (s *Service) MerchantOrders(ctx context.Context, merchantID int64, limit int) ([]*domain.Order, error) {
	if merchantID <= 0 {
		return nil, fmt.Errorf("%w: merchant id must be positive", ErrInvalidMerchant)
	}
	if limit <= 0 || limit > DefaultMerchantLimit {
		limit = DefaultMerchantLimit
	}
	orders, err := s.repo.ListOrdersByMerchant(ctx, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list merchant orders: %w", err)
	}
	return orders, nil
}

// Get returns an order owned by userID. Orders of other users are reported as not found.
func (s *Service) Get(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus moves an order of merchantID to next following the order status machine.
func (s *Service) UpdateStatus(ctx context.Context, merchantID, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.MerchantID != merchantID {
		return nil, ErrOrderNotFound
	}

	current := order.Status
	if !current.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, current, next)
	}

	updatedAt, err := s.repo.UpdateOrderStatus(ctx, orderID, merchantID, current, next)
	if errors.Is(err, repository.ErrStateConflict) {
		// Status changed between the read and the update.
		return nil, fmt.Errorf("%w: %s is no longer %s", domain.ErrIllegalTransition, next, current)
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	order.Status = next
	order.UpdatedAt = updatedAt
	s.log.Info().
		Int64("order_id", orderID).
		Int64("merchant_id", merchantID).
		Stringer("from", current).
		Stringer("to", next).
		Msg("order status updated")
	return order, nil
}
