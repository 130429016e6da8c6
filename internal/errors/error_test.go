package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil is ok", err: nil, expected: http.StatusOK},
		{name: "validation", err: Validation("quantity=%d out of range", 11), expected: http.StatusBadRequest},
		{name: "wrapped not found", err: fmt.Errorf("failed removing item with error=%w", NotFound("cart item not found")), expected: http.StatusNotFound},
		{name: "conflict", err: Conflict("quote already accepted"), expected: http.StatusConflict},
		{name: "forbidden", err: Forbidden("admin only"), expected: http.StatusForbidden},
		{name: "invalid token", err: ErrTokenInvalid, expected: http.StatusUnauthorized},
		{name: "external", err: ExternalService(errors.New("dial tcp"), "rates unavailable"), expected: http.StatusBadGateway},
		{name: "unknown", err: errors.New("pgx: conn closed"), expected: http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, StatusCode(test.err))
		})
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	wrapped := fmt.Errorf("failed inserting cart with error=%w", errors.New("pq: relation carts does not exist"))
	assert.Equal(t, "internal server error", PublicMessage(wrapped))

	cause := errors.New("dial tcp 10.0.0.1:443: i/o timeout")
	err := fmt.Errorf("failed refreshing with error=%w", ExternalService(cause, "exchange rates unavailable"))
	assert.Equal(t, "exchange rates unavailable", PublicMessage(err))
	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, cause)
}
