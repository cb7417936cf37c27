package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ DB *pgxpool.Pool }

func (s *Store) Insert(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	var userID *string
	if o.UserID != "" {
		userID = &o.UserID
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO orders (id, user_id, items, total, address, payment, shipping, payment_method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, userID, items, o.Total, nullable(o.Address), nullable(o.Payment),
		o.Shipping, string(o.PaymentMethod), string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*Order, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, user_id, items, total, address, payment, shipping, payment_method, status, created_at
		FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, items, total, address, payment, shipping, payment_method, status, created_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                         Order
		userID                    *string
		items, address, payment   []byte
		paymentMethod, statusText string
	)
	err := row.Scan(&o.ID, &userID, &items, &o.Total, &address, &payment,
		&o.Shipping, &paymentMethod, &statusText, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		o.UserID = *userID
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
	}
	o.Address = address
	o.Payment = payment
	o.PaymentMethod = PaymentMethod(paymentMethod)
	o.Status = Status(statusText)
	return &o, nil
}

func nullable(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
