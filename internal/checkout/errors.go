package checkout

import "errors"

var (
	ErrNoSession           = errors.New("no authenticated session")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrAlreadyFinalized    = errors.New("checkout already finalized")
	ErrNoCheckout          = errors.New("no checkout in progress for this cart")
	ErrCheckoutAborted     = errors.New("checkout was aborted")
	ErrCartChanged         = errors.New("cart changed since payment was requested")
	ErrPaymentPending      = errors.New("payment not completed yet")
	ErrPaymentCompleted    = errors.New("payment for a previous version of the cart is completed")
	ErrPaymentNotCompleted = errors.New("payment failed or expired")
	ErrStorageFailure      = errors.New("storage failure, retry later")
	ErrInvalidPayment      = errors.New("invalid payment method")
	ErrInvalidMerchantID   = errors.New("invalid merchant id")
)
