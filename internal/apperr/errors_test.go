package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("nope"), http.StatusUnauthorized},
		{"not found", NotFound("product %d", 7), http.StatusNotFound},
		{"conflict", Conflict("dup"), http.StatusConflict},
		{"gateway 5xx", Gateway("down", 503, nil), http.StatusInternalServerError},
		{"gateway 4xx", Gateway("rejected", 400, nil), http.StatusBadRequest},
		{"internal", Internal("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("product with ID %d not found", 3)
	wrapped := fmt.Errorf("create order: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "product with ID 3 not found", base.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("failed to load orders", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load orders: connection reset", err.Error())
}
