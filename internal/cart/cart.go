package cart

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("cart: not found")
	ErrItemNotFound  = errors.New("cart: item not in cart")
	ErrDuplicateCart = errors.New("cart: user already has a cart")
)

type Item struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Quantity  int      `json:"quantity"`
	Images    []string `json:"images,omitempty"`
}

type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddItem merges by product id: an existing line gains the added quantity,
// otherwise a new line is appended. A cart never holds two lines for one product.
func (c *Cart) AddItem(it Item) {
	for i := range c.Items {
		if c.Items[i].ProductID == it.ProductID {
			c.Items[i].Quantity += it.Quantity
			c.touch()
			return
		}
	}
	c.Items = append(c.Items, it)
	c.touch()
}

// SetQuantity sets the line quantity for a product; qty <= 0 removes the line.
func (c *Cart) SetQuantity(productID string, qty int) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			if qty > 0 {
				c.Items[i].Quantity = qty
			} else {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			}
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) RemoveItem(productID string) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Clear() {
	c.Items = c.Items[:0]
	c.touch()
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }

func (c *Cart) touch() { c.UpdatedAt = time.Now().UTC() }
