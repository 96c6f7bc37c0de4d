package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_takeout/internal/cart"
	"github.com/fjod/go_takeout/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	AddItem(ctx context.Context, session domain.Session, merchantID, itemID int64, quantity int) (int, error)
	UpdateQuantity(ctx context.Context, session domain.Session, merchantID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, session domain.Session, merchantID, itemID int64) error
	Clear(ctx context.Context, session domain.Session, merchantID int64) error
	Snapshot(ctx context.Context, session domain.Session, merchantID int64) (*domain.CartSnapshot, error)
	TakeLastOrder(ctx context.Context, session domain.Session) (int64, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartCountResponseDTO struct {
	CartCount int `json:"cart_count"`
}

// GET /api/v1/stores/{merchant_id}/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}

	snapshot, err := h.carts.Snapshot(ctx, SessionFromContext(r.Context()), merchantID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// POST /api/v1/stores/{merchant_id}/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ItemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > cart.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	count, err := h.carts.AddItem(ctx, SessionFromContext(r.Context()), merchantID, req.ItemID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, CartCountResponseDTO{CartCount: count})
}

// PUT /api/v1/stores/{merchant_id}/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "item_id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Zero or negative removes the line.
	session := SessionFromContext(r.Context())
	if err := h.carts.UpdateQuantity(ctx, session, merchantID, itemID, req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.respondSnapshot(ctx, w, r, session, merchantID)
}

// DELETE /api/v1/stores/{merchant_id}/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "item_id")
	if !ok {
		return
	}

	session := SessionFromContext(r.Context())
	if err := h.carts.RemoveItem(ctx, session, merchantID, itemID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.respondSnapshot(ctx, w, r, session, merchantID)
}

// DELETE /api/v1/stores/{merchant_id}/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	merchantID, ok := pathID(w, r, "merchant_id")
	if !ok {
		return
	}

	if err := h.carts.Clear(ctx, SessionFromContext(r.Context()), merchantID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) respondSnapshot(ctx context.Context, w http.ResponseWriter, r *http.Request, session domain.Session, merchantID int64) {
	snapshot, err := h.carts.Snapshot(ctx, session, merchantID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
