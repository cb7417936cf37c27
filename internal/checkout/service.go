package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pechdavin/go-shop-backend/internal/cart"
	"github.com/pechdavin/go-shop-backend/internal/orders"
)

var (
	ErrEmptyCart       = errors.New("checkout: cart is empty")
	ErrUnauthenticated = errors.New("checkout: no resolvable identity")
)

// Collaborator ports, satisfied by the pgx-backed stores in production and by
// in-memory fakes in tests.
type CartStore interface {
	FindByID(ctx context.Context, id string) (*cart.Cart, error)
	FindByUser(ctx context.Context, userID string) (*cart.Cart, error)
	Save(ctx context.Context, c *cart.Cart) error
}

type Ledger interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Restore(ctx context.Context, productID string, qty int) error
}

type OrderStore interface {
	Insert(ctx context.Context, o *orders.Order) error
}

// Service coordinates the order-creation workflow:
// resolve cart -> reserve stock per item -> build and persist order -> clear cart.
// Stock reservations are compensated (restored) when a later step fails before
// the order is durably persisted.
type Service struct {
	Carts  CartStore
	Ledger Ledger
	Orders OrderStore
	Log    *zap.Logger

	// AllowCartIDCheckout permits an explicit cart id to stand in for a missing
	// authenticated identity (guest checkout).
	AllowCartIDCheckout bool
}

type Request struct {
	CartID string // optional explicit cart id; wins over identity when valid
	UserID string // resolved identity, empty when unauthenticated
	Meta   orders.CheckoutMeta
}

func (s *Service) CreateOrder(ctx context.Context, req Request) (*orders.Order, error) {
	log := s.logger().With(zap.String("user_id", req.UserID), zap.String("cart_id", req.CartID))

	c, err := s.resolveCart(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	// Each product's decrement is its own atomic unit; unrelated products never
	// block each other. On the first failure everything already reserved for
	// this attempt is restored.
	reserved := make([]cart.Item, 0, len(c.Items))
	for _, it := range c.Items {
		if err := s.Ledger.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			s.release(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, it)
	}

	o := orders.Build(req.UserID, c.Items, req.Meta)
	if err := s.Orders.Insert(ctx, o); err != nil {
		s.release(ctx, reserved)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	c.Clear()
	if err := s.Carts.Save(ctx, c); err != nil {
		// Stock is spent and the order exists; restoring stock here would
		// corrupt the ledger. Surface the failure and leave the order id in
		// the logs for reconciliation.
		log.Error("cart clear failed after order persisted",
			zap.String("order_id", o.ID), zap.Error(err))
		return nil, fmt.Errorf("clear cart after order %s: %w", o.ID, err)
	}

	log.Info("order created",
		zap.String("order_id", o.ID),
		zap.Float64("total", o.Total),
		zap.Int("items", len(o.Items)))
	return o, nil
}

// resolveCart applies the precedence rule: an explicit cart id wins when
// present and valid, then the authenticated identity, otherwise fail.
func (s *Service) resolveCart(ctx context.Context, req Request) (*cart.Cart, error) {
	if req.UserID == "" && !(req.CartID != "" && s.AllowCartIDCheckout) {
		return nil, ErrUnauthenticated
	}
	if req.CartID != "" {
		c, err := s.Carts.FindByID(ctx, req.CartID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, cart.ErrNotFound) {
			return nil, err
		}
	}
	if req.UserID == "" {
		return nil, cart.ErrNotFound
	}
	return s.Carts.FindByUser(ctx, req.UserID)
}

func (s *Service) release(ctx context.Context, items []cart.Item) {
	for _, it := range items {
		if err := s.Ledger.Restore(ctx, it.ProductID, it.Quantity); err != nil {
			s.logger().Error("stock restore failed",
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err))
		}
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}
