package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewConfigErrorWithCause("admin.port", "must be positive", cause)

	assert.Equal(t, "config error at admin.port: must be positive", err.Error())
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "config error: bad", NewConfigError("", "bad").Error())
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("invalid config")
	assert.False(t, err.HasErrors())

	err.AddField("logging.level", "unknown level")
	assert.True(t, err.HasErrors())
	assert.Contains(t, err.Error(), "logging.level")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDuplicatePatternError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("register: %w", NewDuplicatePatternError("/stats.json"))

	assert.ErrorIs(t, err, ErrDuplicatePattern)
	assert.Contains(t, err.Error(), "/stats.json")

	var dup *DuplicatePatternError
	assert.True(t, errors.As(err, &dup))
	assert.Equal(t, "/stats.json", dup.Pattern)
}

func TestBindError(t *testing.T) {
	t.Parallel()

	cause := errors.New("address already in use")
	err := NewBindError(":9991", cause)

	assert.Equal(t, "failed to bind :9991: address already in use", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &BindError{})
}

func TestIsHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrNotFound)))
	assert.False(t, IsNotFound(errors.New("other")))
	assert.True(t, IsClosed(ErrClosed))
	assert.True(t, IsClosed(fmt.Errorf("submit: %w", ErrPoolClosed)))
	assert.False(t, IsClosed(nil))
}
