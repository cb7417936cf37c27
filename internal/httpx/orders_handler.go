package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/pechdavin/go-shop-backend/internal/cart"
	"github.com/pechdavin/go-shop-backend/internal/checkout"
	"github.com/pechdavin/go-shop-backend/internal/inventory"
	kafkax "github.com/pechdavin/go-shop-backend/internal/kafka"
	"github.com/pechdavin/go-shop-backend/internal/orders"
	"github.com/pechdavin/go-shop-backend/internal/redisx"
)

type CheckoutService interface {
	CreateOrder(ctx context.Context, req checkout.Request) (*orders.Order, error)
}

type OrderReader interface {
	FindByID(ctx context.Context, id string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
}

type OrdersHandler struct {
	Checkout CheckoutService
	Orders   OrderReader
	Redis    *redis.Client
	Producer *kafkax.Producer
	Service  string
}

type CreateOrderReq struct {
	CartID        string          `json:"cartId"`
	Address       json.RawMessage `json:"address"`
	Payment       json.RawMessage `json:"payment"`
	Shipping      string          `json:"shipping"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        string          `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders", h.listOrders)
	r.Get("/api/orders/{id}", h.getOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	// An absent body is a valid request (all checkout fields are optional).
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Optional idempotency: repeated submissions with one request id are
	// rejected before any stock is touched. Redis being down fails open.
	var idemKey string
	if reqID := r.Header.Get("X-Request-Id"); reqID != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, reqID)
		if ok, err := redisx.SetOnce(ctx, h.Redis, idemKey, redisx.TTLIdempotency); err == nil && !ok {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "duplicate request"})
			return
		}
	}

	o, err := h.Checkout.CreateOrder(ctx, checkout.Request{
		CartID: req.CartID,
		UserID: Identity(r.Context()),
		Meta: orders.CheckoutMeta{
			Address:       req.Address,
			Payment:       req.Payment,
			Shipping:      req.Shipping,
			PaymentMethod: req.PaymentMethod,
			Status:        req.Status,
		},
	})
	if err != nil {
		// Nothing was created, so the request id stays retryable.
		if idemKey != "" {
			_ = h.Redis.Del(ctx, idemKey).Err()
		}
		h.writeCheckoutError(w, err)
		return
	}

	h.cacheOrder(ctx, o)
	h.publishCreated(o, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Order created successfully",
		"orderId": o.ID,
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := Identity(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByUser(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID := Identity(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")

	o := h.cachedOrder(ctx, orderID)
	if o == nil {
		var err error
		o, err = h.Orders.FindByID(ctx, orderID)
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
			return
		}
		h.cacheOrder(ctx, o)
	}

	// Only the owner may view an order; guest orders have no owner to match.
	if o.UserID == "" || o.UserID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err()
}

func (h *OrdersHandler) cachedOrder(ctx context.Context, orderID string) *orders.Order {
	key := fmt.Sprintf(redisx.KeyOrder, orderID)
	s, err := h.Redis.Get(ctx, key).Result()
	if err != nil || s == "" {
		return nil
	}
	var o orders.Order
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return nil
	}
	return &o
}

func (h *OrdersHandler) publishCreated(o *orders.Order, traceID string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.OrderCreatedPayload{Order: *o}),
	}
	h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	var shortage *inventory.InsufficientStockError
	switch {
	case errors.Is(err, cart.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Cart not found"})
	case errors.Is(err, inventory.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
	case errors.Is(err, checkout.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Cart is empty"})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid item quantity"})
	case errors.As(err, &shortage):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "Insufficient stock for product " + shortage.Name,
		})
	case errors.Is(err, checkout.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}
}
