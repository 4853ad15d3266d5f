package repository

import (
	"context"

	"github.com/google/uuid"

	"plantshop-backend/internal/domains/catalog/model"
)

type ProductRepository interface {
	// GetProductsByIDs returns the active products among ids. Missing ids are simply absent.
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
}
