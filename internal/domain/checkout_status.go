package domain

import (
	"errors"
	"time"
)

var ErrIllegalTransition = errors.New("illegal state transition")

// AttemptState tracks a checkout attempt from payment request to order.
type AttemptState string

const (
	AttemptStateNoOrder        AttemptState = "NO_ORDER"
	AttemptStatePendingConfirm AttemptState = "PENDING_CONFIRM"
	AttemptStateCommitted      AttemptState = "COMMITTED"
	AttemptStateAborted        AttemptState = "ABORTED"
)

var attemptTransitions = map[AttemptState][]AttemptState{
	AttemptStateNoOrder:        {AttemptStatePendingConfirm},
	AttemptStatePendingConfirm: {AttemptStateCommitted, AttemptStateAborted},
	AttemptStateCommitted:      {},
	AttemptStateAborted:        {},
}

func (s AttemptState) IsTerminal() bool {
	return s == AttemptStateCommitted || s == AttemptStateAborted
}

// String implements fmt.Stringer for log fields.
func (s AttemptState) String() string {
	return string(s)
}

func CanTransitionTo(from, to AttemptState) bool {
	for _, next := range attemptTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckoutAttempt is the persisted record of one payment request. MerchantPaymentID is
// the idempotency key for finalization.
type CheckoutAttempt struct {
	MerchantPaymentID string        `db:"merchant_payment_id"`
	SessionID         string        `db:"session_id"`
	UserID            int64         `db:"user_id"`
	MerchantID        int64         `db:"merchant_id"`
	Amount            int64         `db:"amount"`
	Currency          string        `db:"currency"`
	Snapshot          *CartSnapshot `db:"-"`
	Fingerprint       string        `db:"fingerprint"`
	CodeID            string        `db:"code_id"`
	URL               string        `db:"url"`
	Deeplink          string        `db:"deeplink"`
	RedirectURL       string        `db:"redirect_url"`
	State             AttemptState  `db:"state"`
	OrderID           *int64        `db:"order_id"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

// PaymentRequest rebuilds the display view of a stored attempt.
func (a *CheckoutAttempt) PaymentRequest() *PaymentRequest {
	req := &PaymentRequest{
		MerchantPaymentID: a.MerchantPaymentID,
		Amount:            a.Amount,
		Currency:          a.Currency,
		RedirectURL:       a.RedirectURL,
		CodeID:            a.CodeID,
		URL:               a.URL,
		Deeplink:          a.Deeplink,
	}
	if a.Snapshot != nil {
		req.Items = a.Snapshot.Items
	}
	return req
}
