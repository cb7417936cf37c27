package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Storage interface {
	FindByID(ctx context.Context, id string) (*Cart, error)
	FindByUser(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}

// Service owns the per-identity cart lifecycle. Carts are created lazily on
// first access. Mutations are read-modify-write over the whole document;
// concurrent edits from two sessions of the same identity are last-write-wins.
type Service struct {
	Store Storage
}

func (s *Service) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.Store.FindByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	c = &Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Save(ctx, c); err != nil {
		// Lost the first-touch race: another request created this user's
		// cart between our read and write. Use theirs.
		if errors.Is(err, ErrDuplicateCart) {
			return s.Store.FindByUser(ctx, userID)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, userID string, it Item) (*Cart, error) {
	c, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.AddItem(it)
	if err := s.Store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	c, err := s.Store.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(productID, qty); err != nil {
		return nil, err
	}
	if err := s.Store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	c, err := s.Store.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveItem(productID); err != nil {
		return nil, err
	}
	if err := s.Store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clear empties the cart if one exists; a missing cart is not an error.
func (s *Service) Clear(ctx context.Context, userID string) error {
	c, err := s.Store.FindByUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.Clear()
	return s.Store.Save(ctx, c)
}
