package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_UnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("set username: %w", ValidationFailed("username", "too short"))

	assert.True(t, errors.Is(err, ErrValidation))
	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "username", appErr.Field)
	assert.Equal(t, "too short", appErr.Error())
}

func TestConstructors(t *testing.T) {
	assert.ErrorIs(t, NotFound("payment", "p1"), ErrNotFound)
	assert.Equal(t, "payment not found with id p1", NotFound("payment", "p1").Message)
	assert.ErrorIs(t, Conflict("taken"), ErrConflict)
	assert.ErrorIs(t, Forbidden("no"), ErrForbidden)
	assert.ErrorIs(t, Unavailable("off"), ErrUnavailable)
	assert.ErrorIs(t, RateLimited(), ErrRateLimited)
}
