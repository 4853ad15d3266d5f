package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"plantshop-backend/internal/shared/apperror"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Order is the slice of order history the pricing engine reads.
type Order struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (o *Order) IsCancelled() bool {
	return o.Status == StatusCancelled
}

const (
	CodeOrderNotFound  apperror.ErrorCode = "ORDER_NOT_FOUND"
	CodeOrderCancelled apperror.ErrorCode = "ORDER_CANCELLED"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	ErrNotFound  = apperror.NotFound(CodeOrderNotFound, "We couldn't find that order.")
	ErrCancelled = apperror.BadRequest(CodeOrderCancelled, "Coupons cannot be applied to a cancelled order.")
)
