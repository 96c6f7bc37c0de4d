package domain

import "time"

// PaymentStatus is the externally visible status of a gateway payment.
type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "CREATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
)

// IsTerminal reports whether polling should stop.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusExpired
}

// IsExternal reports whether s belongs to the set callers are allowed to see.
func (s PaymentStatus) IsExternal() bool {
	switch s {
	case PaymentStatusCreated, PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusExpired:
		return true
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentRequest is one checkout attempt registered with the payment gateway.
type PaymentRequest struct {
	MerchantPaymentID string     `json:"merchant_payment_id"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	Items             []LineItem `json:"items"`
	RedirectURL       string     `json:"redirect_url"`
	CodeID            string     `json:"code_id,omitempty"`
	URL               string     `json:"url"`
	Deeplink          string     `json:"deeplink,omitempty"`
	ExpiresAt         time.Time  `json:"expires_at,omitempty"`
}
