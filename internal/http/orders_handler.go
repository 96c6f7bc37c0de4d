package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
)

type OrderService interface {
	History(ctx context.Context, userID int64, limit int) ([]*domain.Order, error)
	MerchantOrders(ctx context.Context, merchantID int64, limit int) ([]*domain.Order, error)
	Get(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, merchantID, orderID int64, next domain.OrderStatus) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	carts   CartService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, carts CartService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		carts:   carts,
		timeout: timeout,
	}
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

type OrdersResponseDTO struct {
	Orders []*domain.Order `json:"orders"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.orders.History(ctx, session.UserID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: orders})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.Get(ctx, session.UserID, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/orders/last
//
// The id is handed out once; a second call is a 404.
func (h *OrdersHandler) LastOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := h.carts.TakeLastOrder(ctx, SessionFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderIDResponseDTO{OrderID: orderID})
}

// GET /api/v1/merchants/{merchant_id}/orders
func (h *OrdersHandler) MerchantOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, ok := requireUser(w, r); !ok {
		return
	}
	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.orders.MerchantOrders(ctx, merchantID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: orders})
}

// PATCH /api/v1/merchants/{merchant_id}/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, ok := requireUser(w, r); !ok {
		return
	}
	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.UpdateStatus(ctx, merchantID, orderID, req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func requireUser(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	session := SessionFromContext(r.Context())
	if !session.IsAuthenticated() {
		respondError(w, http.StatusUnauthorized, "no_session", "missing authenticated session")
		return session, false
	}
	return session, true
}
