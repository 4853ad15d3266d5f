package model

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"plantshop-backend/internal/shared/apperror"
)

// Product is the read-only projection of a catalog entry used for pricing.
type Product struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	IsActive bool            `json:"isActive"`
}

const CodeProductNotFound apperror.ErrorCode = "PRODUCT_NOT_FOUND"

var (
	ErrProductNotFound = errors.New("product not found")

	ErrNotFound = apperror.NotFound(CodeProductNotFound, "This product is no longer available.")
)
