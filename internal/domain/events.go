package domain

import "time"

const EventOrderPlaced = "order.placed"

// OrderPlacedEvent is written to the outbox in the same transaction as the order.
type OrderPlacedEvent struct {
	OrderID           int64     `json:"order_id"`
	UserID            int64     `json:"user_id"`
	MerchantID        int64     `json:"merchant_id"`
	SessionID         string    `json:"session_id"`
	CartFingerprint   string    `json:"cart_fingerprint"`
	MerchantPaymentID string    `json:"merchant_payment_id,omitempty"`
	PaymentMethod     string    `json:"payment_method"`
	TotalAmount       int64     `json:"total_amount"`
	Currency          string    `json:"currency"`
	PlacedAt          time.Time `json:"placed_at"`
}
