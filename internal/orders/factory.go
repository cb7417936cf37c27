package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pechdavin/go-shop-backend/internal/cart"
)

// CheckoutMeta is the caller-supplied checkout payload. Address and payment
// are opaque documents; the enum fields arrive as free-form strings.
type CheckoutMeta struct {
	Address       json.RawMessage
	Payment       json.RawMessage
	Shipping      string
	PaymentMethod string
	Status        string
}

// Build assembles an immutable order from a cart snapshot. Every line item is
// copied by value, including the images slice, so the order shares no mutable
// state with the cart it came from. The total is computed once here and never
// recomputed; absent prices or quantities count as zero.
func Build(userID string, items []cart.Item, meta CheckoutMeta) *Order {
	o := &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         make([]Item, 0, len(items)),
		Address:       meta.Address,
		Payment:       meta.Payment,
		Shipping:      meta.Shipping,
		PaymentMethod: PaymentCard,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	var total float64
	for _, it := range items {
		oi := Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
		if len(it.Images) > 0 {
			oi.Images = make([]string, len(it.Images))
			copy(oi.Images, it.Images)
		}
		o.Items = append(o.Items, oi)
		total += it.Price * float64(it.Quantity)
	}
	o.Total = total

	if meta.PaymentMethod != "" {
		if pm, ok := ParsePaymentMethod(meta.PaymentMethod); ok {
			o.PaymentMethod = pm
		}
		// unparseable method keeps the CARD default
	}
	if meta.Status != "" {
		o.Status = ParseStatus(meta.Status)
	}
	return o
}
