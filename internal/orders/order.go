package orders

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("orders: not found")
	ErrForbidden = errors.New("orders: order belongs to another user")
)

type PaymentMethod string

const (
	PaymentABA  PaymentMethod = "ABA"
	PaymentKHQR PaymentMethod = "KHQR"
	PaymentCard PaymentMethod = "CARD"
)

// ParsePaymentMethod matches case-insensitively. Unrecognised values report
// ok=false so the caller can keep its default instead of failing the request.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentABA:
		return PaymentABA, true
	case PaymentKHQR:
		return PaymentKHQR, true
	case PaymentCard:
		return PaymentCard, true
	}
	return "", false
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus matches case-insensitively; unrecognised values fall back to PENDING.
func ParseStatus(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending
	case StatusPaid:
		return StatusPaid
	case StatusShipped:
		return StatusShipped
	case StatusDelivered:
		return StatusDelivered
	case StatusCancelled:
		return StatusCancelled
	}
	return StatusPending
}

// Item is a by-value snapshot of a cart line at order time. It must never
// alias the cart's own slices.
type Item struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Quantity  int      `json:"quantity"`
	Images    []string `json:"images,omitempty"`
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId,omitempty"` // empty for guest checkout
	Items         []Item          `json:"items"`
	Total         float64         `json:"total"`
	Address       json.RawMessage `json:"address,omitempty"`
	Payment       json.RawMessage `json:"payment,omitempty"`
	Shipping      string          `json:"shipping,omitempty"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}
