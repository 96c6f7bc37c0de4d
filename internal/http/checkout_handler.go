package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_takeout/internal/checkout"
	"github.com/fjod/go_takeout/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

type CheckoutService interface {
	StartCheckout(ctx context.Context, session domain.Session, merchantID int64) (*domain.PaymentRequest, error)
	Abandon(ctx context.Context, session domain.Session, merchantID int64) error
	Status(ctx context.Context, merchantPaymentID string) (domain.PaymentStatus, error)
	Finalize(ctx context.Context, session domain.Session, merchantID int64, merchantPaymentID string) (int64, error)
	CreateOrder(ctx context.Context, session domain.Session, merchantID int64, paymentMethod string) (int64, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
	}
}

type FinalizeRequestDTO struct {
	MerchantPaymentID string `json:"merchant_payment_id"`
}

type CreateOrderRequestDTO struct {
	PaymentMethod string `json:"payment_method"`
}

type OrderIDResponseDTO struct {
	OrderID int64 `json:"order_id"`
}

type StatusResponseDTO struct {
	Status domain.PaymentStatus `json:"status"`
}

// POST /api/v1/stores/{merchant_id}/checkout
func (h *CheckoutHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}

	req, err := h.checkout.StartCheckout(ctx, SessionFromContext(r.Context()), merchantID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

// POST /api/v1/stores/{merchant_id}/checkout/abandon
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}

	if err := h.checkout.Abandon(ctx, SessionFromContext(r.Context()), merchantID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/payments/{merchant_payment_id}/status
//
// Any classification is a 200. Fetch failures are the only 500.
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status, err := h.checkout.Status(ctx, chi.URLParam(r, "merchant_payment_id"))
	if errors.Is(err, checkout.ErrNoCheckout) {
		respondError(w, http.StatusBadRequest, "invalid_merchant_payment_id", "merchant_payment_id is required")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("payment status fetch failed")
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "payment status unavailable, retry later",
			Code:    "status_unavailable",
			Details: err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponseDTO{Status: status})
}

// POST /api/v1/stores/{merchant_id}/finalize
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}

	// The body is optional; without it the latest checkout of the cart is finalized.
	var req FinalizeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orderID, err := h.checkout.Finalize(ctx, SessionFromContext(r.Context()), merchantID, req.MerchantPaymentID)
	h.respondOrderID(w, r, orderID, err)
}

// POST /api/v1/stores/{merchant_id}/orders
func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orderID, err := h.checkout.CreateOrder(ctx, SessionFromContext(r.Context()), merchantID, req.PaymentMethod)
	h.respondOrderID(w, r, orderID, err)
}

func (h *CheckoutHandler) respondOrderID(w http.ResponseWriter, r *http.Request, orderID int64, err error) {
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, OrderIDResponseDTO{OrderID: orderID})
	case errors.Is(err, checkout.ErrAlreadyFinalized):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "order already placed for this checkout",
			Code:    "already_finalized",
			OrderID: orderID,
		})
	default:
		handleServiceError(w, r, err)
	}
}
