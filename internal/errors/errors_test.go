package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := &errors.ValidationError{Fields: map[string]string{
		"numeroTarjeta": "invalid card number",
		"cvv":           "must be 3 or 4 digits",
	}}
	require.Equal(t, "validation failed: cvv: must be 3 or 4 digits; numeroTarjeta: invalid card number", err.Error())
	require.Equal(t, "must be 3 or 4 digits", err.Field("cvv"))
	require.Empty(t, err.Field("direccion"))
	require.Nil(t, stderrors.Unwrap(err))

	ruleErr := errors.NewRuleError("cantidad", errors.ErrInvalidQuantity)
	require.True(t, errors.Is(ruleErr, errors.ErrInvalidQuantity))
	require.Equal(t, errors.ErrInvalidQuantity.Error(), ruleErr.Field("cantidad"))
}

func TestAuthExpiredError(t *testing.T) {
	err := fmt.Errorf("fetch cart: %w", &errors.AuthExpiredError{
		HttpError: &errors.HttpError{Status: http.StatusUnauthorized, Message: "Token expirado"},
	})

	require.True(t, errors.Is(err, errors.ErrSessionExpired))

	var httpErr *errors.HttpError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusUnauthorized, httpErr.Status)
	require.Contains(t, err.Error(), "Token expirado")
}

func TestNetworkError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := &errors.NetworkError{Op: "GET /carrito", Err: cause}
	require.True(t, errors.Is(err, cause))
	require.Equal(t, "network error during GET /carrito: connection refused", err.Error())
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", errors.NewValidationError("email", "required"), "validation failed: email: required"},
		{"auth expired", &errors.AuthExpiredError{HttpError: &errors.HttpError{Status: 401}}, "Your session has expired, please log in again"},
		{"network", &errors.NetworkError{Op: "GET", Err: stderrors.New("timeout")}, "Could not reach the store, check your connection and try again"},
		{"http with message", &errors.HttpError{Status: 400, Message: "Stock insuficiente"}, "Stock insuficiente"},
		{"http without message", &errors.HttpError{Status: 502}, "The store responded with an error (502)"},
		{"empty cart", errors.Wrapf(errors.ErrEmptyCart, "checkout"), "Your cart is empty"},
		{"not authenticated", errors.ErrNotAuthenticated, "Please log in to continue"},
		{"other", stderrors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, errors.UserMessage(tt.err))
		})
	}
}

func TestWrapf(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "ignored"))
	err := errors.Wrapf(errors.ErrNotFound, "order %d", 7)
	require.Equal(t, "order 7: not found", err.Error())
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
