package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("consume: %w", NewInsufficientStock("m-1", "10.0000", "4.0000"))

	assert.True(t, IsInsufficientStock(err))
	assert.False(t, IsConcurrentModification(err))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(err))

	appErr, ok := AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "4.0000", appErr.Details["available"])
}

func TestGetHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsAppError(errors.New("boom")))
}

func TestWithCause(t *testing.T) {
	cause := errors.New("serialization failure")
	err := NewConcurrentModification("material", "m-1").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "caused by")
	assert.True(t, IsConcurrentModification(err))
}

func TestFactories(t *testing.T) {
	assert.True(t, IsInvalidQuantity(NewInvalidQuantity("0")))
	assert.True(t, IsMaterialNotFound(NewMaterialNotFound("m-1")))
	assert.True(t, IsNotFound(NewNotFound("lot", "l-1")))
	assert.Equal(t, "qty", NewValidation("bad").WithDetail("field", "qty").Details["field"])
}
