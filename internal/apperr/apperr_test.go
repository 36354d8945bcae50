package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsThroughWrapping(t *testing.T) {
	base := NotFound("Gig", errors.New("record not found"))
	wrapped := fmt.Errorf("load gig: %w", base)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "Gig not found", got.Message)
	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))
	assert.True(t, Is(wrapped, "NOT_FOUND"))
}

func TestStatusOfForeignError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.False(t, Is(errors.New("boom"), "NOT_FOUND"))
}

func TestFieldValidation(t *testing.T) {
	err := Field("reason", "too short")
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.Equal(t, []string{"too short"}, err.Fields["reason"])
	assert.Equal(t, "VALIDATION_ERROR: Validation error", err.Error())
}
