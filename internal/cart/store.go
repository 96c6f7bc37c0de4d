package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_takeout/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrNoLastOrder  = errors.New("no last order recorded")
)

// Store keeps session carts, one per (session, merchant). Consumers depend on this
// interface, not on a backend.
type Store interface {
	Load(ctx context.Context, sessionID string, merchantID int64) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string, merchantID int64) error
	SetLastOrder(ctx context.Context, sessionID string, orderID int64) error
	// TakeLastOrder returns the recorded order id and forgets it.
	TakeLastOrder(ctx context.Context, sessionID string) (int64, error)
}

func cartKey(sessionID string, merchantID int64) string {
	return fmt.Sprintf("cart:%s:%d", sessionID, merchantID)
}

func lastOrderKey(sessionID string) string {
	return fmt.Sprintf("last_order:%s", sessionID)
}
