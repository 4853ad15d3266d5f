package repository

import (
	"context"

	"github.com/google/uuid"

	"plantshop-backend/internal/domains/order/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// CountNonCancelledOrders backs the first-time customer rule.
	CountNonCancelledOrders(ctx context.Context, userID uuid.UUID) (int, error)
}
