package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_takeout/internal/cart"
	"github.com/fjod/go_takeout/internal/checkout"
	"github.com/fjod/go_takeout/internal/domain"
	"github.com/fjod/go_takeout/internal/gateway"
	"github.com/fjod/go_takeout/internal/orders"
	"github.com/rs/zerolog/hlog"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	OrderID int64  `json:"order_id,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
	msg    string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{checkout.ErrNoSession, http.StatusUnauthorized, "no_session", "missing authenticated session"},
	{checkout.ErrInvalidMerchantID, http.StatusBadRequest, "invalid_merchant_id", "merchant_id must be positive"},
	{checkout.ErrInvalidPayment, http.StatusBadRequest, "invalid_payment_method", "payment method is not supported here"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart", "cart is empty"},
	{checkout.ErrAlreadyFinalized, http.StatusConflict, "already_finalized", "order already placed for this checkout"},
	{checkout.ErrNoCheckout, http.StatusNotFound, "no_checkout", "no checkout in progress"},
	{checkout.ErrCheckoutAborted, http.StatusConflict, "checkout_aborted", "checkout was aborted, start a new one"},
	{checkout.ErrCartChanged, http.StatusConflict, "cart_changed", "cart changed after payment was requested"},
	{checkout.ErrPaymentPending, http.StatusConflict, "payment_pending", "payment is not completed yet"},
	{checkout.ErrPaymentCompleted, http.StatusConflict, "payment_completed", "a previous payment is completed, finalize it first"},
	{checkout.ErrPaymentNotCompleted, http.StatusPaymentRequired, "payment_not_completed", "payment failed or expired"},
	{checkout.ErrStorageFailure, http.StatusServiceUnavailable, "storage_failure", "temporary storage failure, retry later"},
	{cart.ErrNoSession, http.StatusUnauthorized, "no_session", "missing authenticated session"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99"},
	{cart.ErrInvalidItem, http.StatusBadRequest, "invalid_item", "item does not exist for this store"},
	{cart.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument", "invalid argument"},
	{cart.ErrNoLastOrder, http.StatusNotFound, "no_last_order", "no recent order"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "order_not_found", "order not found"},
	{orders.ErrInvalidStatus, http.StatusBadRequest, "invalid_status", "unknown order status"},
	{orders.ErrInvalidMerchant, http.StatusBadRequest, "invalid_merchant_id", "merchant_id must be positive"},
	{domain.ErrIllegalTransition, http.StatusConflict, "illegal_transition", "order status transition not allowed"},
	{gateway.ErrUnavailable, http.StatusServiceUnavailable, "gateway_unavailable", "payment gateway unavailable, retry later"},
	{gateway.ErrRejected, http.StatusBadGateway, "gateway_rejected", "payment gateway rejected the request"},
	{gateway.ErrMalformedResponse, http.StatusBadGateway, "gateway_malformed_response", "payment gateway returned an unusable response"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "request timed out"},
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError translates a service error into a status code and an ErrorResponse.
// Details are only exposed for client errors.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		resp := ErrorResponse{Error: m.msg, Code: m.code}
		if m.status < http.StatusInternalServerError {
			resp.Details = err.Error()
		} else {
			hlog.FromRequest(r).Warn().Err(err).Str("code", m.code).Msg("request failed")
		}
		respondJSON(w, m.status, resp)
		return
	}

	hlog.FromRequest(r).Error().Err(err).Msg("unhandled error")
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
