package model

import (
	"errors"

	"plantshop-backend/internal/shared/apperror"
)

// Repository sentinels
var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

const (
	CodeCartNotFound     apperror.ErrorCode = "CART_NOT_FOUND"
	CodeItemNotFound     apperror.ErrorCode = "CART_ITEM_NOT_FOUND"
	CodeUpdateConflict   apperror.ErrorCode = "CART_UPDATE_CONFLICT"
	CodeQuantityExceeded apperror.ErrorCode = "CART_QUANTITY_EXCEEDED"
)

var (
	ErrNotFound       = apperror.NotFound(CodeCartNotFound, "We couldn't find your cart.")
	ErrItemNotFound   = apperror.NotFound(CodeItemNotFound, "This product is not in your cart.")
	ErrUpdateConflict = apperror.Conflict(CodeUpdateConflict,
		"Your cart was updated from another session. Please refresh and try again.")
	ErrQuantityExceeded = apperror.BadRequest(CodeQuantityExceeded,
		"You can't add more of this product to your cart.")
)
