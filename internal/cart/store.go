package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists one cart document per user. The unique index on user_id
// enforces the one-cart-per-identity invariant.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) FindByID(ctx context.Context, id string) (*Cart, error) {
	return s.findBy(ctx, `SELECT id, user_id, items, created_at, updated_at FROM carts WHERE id=$1`, id)
}

func (s *Store) FindByUser(ctx context.Context, userID string) (*Cart, error) {
	return s.findBy(ctx, `SELECT id, user_id, items, created_at, updated_at FROM carts WHERE user_id=$1`, userID)
}

func (s *Store) findBy(ctx context.Context, q, arg string) (*Cart, error) {
	var (
		c     Cart
		items []byte
	)
	err := s.DB.QueryRow(ctx, q, arg).Scan(&c.ID, &c.UserID, &items, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &c.Items); err != nil {
			return nil, fmt.Errorf("decode cart items: %w", err)
		}
	}
	return &c, nil
}

func (s *Store) Save(ctx context.Context, c *Cart) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO carts (id, user_id, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`,
		c.ID, c.UserID, items, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		// Two first-touch requests for one identity can race the unique
		// user_id index; the loser reports ErrDuplicateCart so the caller
		// can re-read the winner's cart.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "user_id") {
			return ErrDuplicateCart
		}
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
