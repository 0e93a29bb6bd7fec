package models

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderError(t *testing.T) {
	err := NewRenderError(ErrCodeTimeout, "navigation to target URL failed", context.DeadlineExceeded)

	assert.Equal(t, "NAVIGATION_TIMEOUT: navigation to target URL failed: context deadline exceeded", err.Error())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, &ErrorDetail{Code: ErrCodeTimeout, Message: "navigation to target URL failed"}, err.ToDetail())

	assert.Equal(t, "INVALID_INPUT: no url", NewRenderError(ErrCodeInvalidInput, "no url", nil).Error())
}
