package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusReceived       OrderStatus = "RECEIVED"
	OrderStatusAccepted       OrderStatus = "ACCEPTED"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusAlmostReady    OrderStatus = "ALMOST_READY"
	OrderStatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCanceled       OrderStatus = "CANCELED"
)

var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusAccepted: true,
		OrderStatusCanceled: true,
	},
	OrderStatusReceived: {
		OrderStatusAccepted: true,
		OrderStatusCanceled: true,
	},
	OrderStatusAccepted: {
		OrderStatusPreparing: true,
		OrderStatusCanceled:  true,
	},
	OrderStatusPreparing: {
		OrderStatusAlmostReady:    true,
		OrderStatusReadyForPickup: true,
		OrderStatusCanceled:       true,
	},
	OrderStatusAlmostReady: {
		OrderStatusReadyForPickup: true,
		OrderStatusCanceled:       true,
	},
	OrderStatusReadyForPickup: {
		OrderStatusCompleted: true,
		OrderStatusCanceled:  true,
	},
	OrderStatusCompleted: {},
	OrderStatusCanceled:  {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderTransitions[s][next]
}

func (s OrderStatus) String() string {
	return string(s)
}

const (
	PaymentMethodPayPay  = "PAYPAY"
	PaymentMethodUnknown = "UNKNOWN"
)

// Order is created exactly once per finalization. TotalAmount is the sum of its item subtotals.
type Order struct {
	ID             int64       `json:"order_id" db:"order_id"`
	UserID         int64       `json:"user_id" db:"user_id"`
	MerchantID     int64       `json:"merchant_id" db:"merchant_id"`
	IdempotencyKey string      `json:"-" db:"idempotency_key"`
	Status         OrderStatus `json:"status" db:"status"`
	PaymentMethod  string      `json:"payment_method" db:"payment_method"`
	TotalAmount    int64       `json:"total_amount" db:"total_amount"`
	Currency       string      `json:"currency" db:"currency"`
	Items          []OrderItem `json:"items" db:"-"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderItem keeps the price at order time, decoupled from later catalog changes.
type OrderItem struct {
	OrderID      int64  `json:"order_id" db:"order_id"`
	ItemID       int64  `json:"item_id" db:"item_id"`
	Name         string `json:"name" db:"name"`
	Quantity     int    `json:"quantity" db:"quantity"`
	PriceAtOrder int64  `json:"price_at_order" db:"price_at_order"`
}

func (i OrderItem) Subtotal() int64 {
	return i.PriceAtOrder * int64(i.Quantity)
}

// NewOrderFromSnapshot builds an unsaved order whose total is computed from the snapshot lines.
func NewOrderFromSnapshot(userID int64, snapshot *CartSnapshot, status OrderStatus, paymentMethod, currency, idempotencyKey string) *Order {
	order := &Order{
		UserID:         userID,
		MerchantID:     snapshot.MerchantID,
		IdempotencyKey: idempotencyKey,
		Status:         status,
		PaymentMethod:  paymentMethod,
		Currency:       currency,
		Items:          make([]OrderItem, 0, len(snapshot.Items)),
	}
	for _, line := range snapshot.Items {
		item := OrderItem{
			ItemID:       line.ItemID,
			Name:         line.Name,
			Quantity:     line.Quantity,
			PriceAtOrder: line.UnitPrice,
		}
		order.Items = append(order.Items, item)
		order.TotalAmount += item.Subtotal()
	}
	return order
}

// Session is the explicit session context threaded through cart and checkout calls.
type Session struct {
	ID     string
	UserID int64
}

func (s Session) IsAuthenticated() bool {
	return s.ID != "" && s.UserID > 0
}
