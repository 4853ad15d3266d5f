package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"plantshop-backend/internal/domains/cart/model"
)

// CartRepository persists the cart aggregate: the cart row, its items and its applied coupons.
type CartRepository interface {
	// GetByUserID returns model.ErrCartNotFound when the user has no cart yet.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	// GetOrCreate returns the user's cart, creating an empty one on first access.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	// Save replaces items, coupons and totals when cart.Version still matches the stored row,
	// then bumps cart.Version. A stale version returns model.ErrVersionConflict.
	// tx may be nil, in which case Save opens its own transaction.
	Save(ctx context.Context, tx pgx.Tx, cart *model.Cart) error
}
