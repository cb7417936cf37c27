package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("inventory: product not found")
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
)

// InsufficientStockError reports a shortage; Name is surfaced to callers so
// error messages can identify the product.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %s (requested %d, available %d)",
		e.Name, e.Requested, e.Available)
}

// Ledger is the authoritative source of remaining stock per product.
// A NULL stock_quantity column reads as zero; stock never goes negative.
type Ledger struct{ DB *pgxpool.Pool }

// CheckAvailability reads current stock without reserving it. The answer is
// only advisory under concurrency; Reserve is the committing operation.
func (l *Ledger) CheckAvailability(ctx context.Context, productID string, qty int) error {
	name, stock, err := l.lookup(ctx, productID)
	if err != nil {
		return err
	}
	if stock < qty {
		return &InsufficientStockError{ProductID: productID, Name: name, Requested: qty, Available: stock}
	}
	return nil
}

// Reserve decrements stock in a single conditional update so two concurrent
// reservations can never both take the last unit. A zero-row update is
// disambiguated with a follow-up read: missing product vs. shortage.
// Quantities below one are rejected outright; a negative quantity would turn
// the decrement into an increment.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products
		SET stock_quantity = COALESCE(stock_quantity, 0) - $2
		WHERE id = $1 AND COALESCE(stock_quantity, 0) >= $2`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	name, stock, err := l.lookup(ctx, productID)
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Name: name, Requested: qty, Available: stock}
}

// Restore is the compensating action for Reserve.
func (l *Ledger) Restore(ctx context.Context, productID string, qty int) error {
	_, err := l.DB.Exec(ctx, `
		UPDATE products
		SET stock_quantity = COALESCE(stock_quantity, 0) + $2
		WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func (l *Ledger) lookup(ctx context.Context, productID string) (name string, stock int, err error) {
	var raw *int
	err = l.DB.QueryRow(ctx, `SELECT name, stock_quantity FROM products WHERE id=$1`, productID).
		Scan(&name, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("query product: %w", err)
	}
	if raw != nil {
		stock = *raw
	}
	return name, stock, nil
}
