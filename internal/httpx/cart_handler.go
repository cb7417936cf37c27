package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pechdavin/go-shop-backend/internal/cart"
)

type CartHandler struct {
	Service *cart.Service
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/api/cart", h.getCart)
	r.Post("/api/cart/add", h.addItem)
	r.Put("/api/cart/update/{productId}", h.updateQuantity)
	r.Delete("/api/cart/remove/{productId}", h.removeItem)
	r.Delete("/api/cart/clear", h.clearCart)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	userID, ctx, cancel, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	c, err := h.Service.GetOrCreate(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	userID, ctx, cancel, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var it cart.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if it.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "productId is required"})
		return
	}
	if it.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "quantity must be at least 1"})
		return
	}

	c, err := h.Service.AddItem(ctx, userID, it)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ctx, cancel, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}

	c, err := h.Service.SetQuantity(ctx, userID, chi.URLParam(r, "productId"), body.Quantity)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	userID, ctx, cancel, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	c, err := h.Service.RemoveItem(ctx, userID, chi.URLParam(r, "productId"))
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID, ctx, cancel, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.Service.Clear(ctx, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared successfully"})
}

func (h *CartHandler) begin(w http.ResponseWriter, r *http.Request) (string, context.Context, context.CancelFunc, bool) {
	userID := Identity(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return "", nil, nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	return userID, ctx, cancel, true
}

func (h *CartHandler) writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Cart not found"})
	case errors.Is(err, cart.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Item not found in cart"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}
}
