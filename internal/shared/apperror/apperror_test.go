package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSample = NotFound("SAMPLE_NOT_FOUND", "Sample not found")

func TestWithDetailsKeepsOriginalUntouched(t *testing.T) {
	withDetails := errSample.WithDetails(map[string]interface{}{"id": "42"})

	assert.Empty(t, errSample.Details)
	assert.Equal(t, "42", withDetails.Details["id"])
	assert.True(t, errors.Is(withDetails, errSample))
}

func TestAsUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("load sample: %w", errSample)

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestValidationCollectsFieldErrors(t *testing.T) {
	err := validation.Errors{
		"code":  errors.New("must be upper case"),
		"value": errors.New("is required"),
	}

	appErr := Validation(err)

	assert.Equal(t, CodeValidationFailed, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Equal(t, "is required", appErr.Details["value"])
	assert.Len(t, appErr.Details, 2)
}

func TestValidationPlainError(t *testing.T) {
	appErr := Validation(errors.New("validTo must be after validFrom"))

	assert.Equal(t, "validTo must be after validFrom", appErr.Message)
	assert.Empty(t, appErr.Details)
}
