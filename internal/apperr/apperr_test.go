package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeStorageError, "insert failed", cause)

	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, CodeStorageError, target.Code)
	assert.ErrorIs(t, err, cause)
}

func TestAsHelper(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", New(CodeValidation, "bad id"))
	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, got.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithDetails(t *testing.T) {
	base := New(CodeForbidden, "tier too low")
	withDetails := base.WithDetails(map[string]any{"current_tier": "PUBLIC"})

	assert.Nil(t, base.Details)
	assert.Equal(t, "PUBLIC", withDetails.Details["current_tier"])
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeBadRequest:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeAuthError:    http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeNotFound:     http.StatusNotFound,
		CodeRateLimited:  http.StatusTooManyRequests,
		CodeInternal:     http.StatusInternalServerError,
		CodeAPIError:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), "code %s", code)
	}
}
