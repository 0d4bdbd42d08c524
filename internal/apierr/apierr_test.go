package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusCoversEveryKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAuth, http.StatusUnauthorized},
		{KindPermission, http.StatusForbidden},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindInsufficientCredits, http.StatusPaymentRequired},
		{KindUpstream, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "code", "message")
			assert.Equal(t, tt.want, err.HTTPStatus())
		})
	}
}

func TestRateLimitedCarriesResetMetadata(t *testing.T) {
	err := RateLimited(0, 1748779200)

	assert.Equal(t, KindRateLimit, err.Kind)
	assert.Equal(t, 0, err.Details["remaining"])
	assert.Equal(t, int64(1748779200), err.Details["reset_at"])
}

func TestInsufficientCreditsCarriesBalance(t *testing.T) {
	err := InsufficientCredits(2)

	assert.Equal(t, KindInsufficientCredits, err.Kind)
	assert.Equal(t, 2, err.Details["balance"])
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := Permission("access_denied", "no")
	wrapped := fmt.Errorf("fetching analytics: %w", base)

	assert.True(t, IsKind(wrapped, KindPermission))
	assert.False(t, IsKind(wrapped, KindAuth))
	assert.False(t, IsKind(errors.New("plain"), KindPermission))
}

func TestFromErrorWrapsForeignErrors(t *testing.T) {
	err := FromError(errors.New("boom"))

	require.NotNil(t, err)
	assert.Equal(t, KindUpstream, err.Kind)
	assert.Equal(t, "internal_error", err.Code)
}

func TestErrorString(t *testing.T) {
	err := Auth("not_connected", "Search Console is not connected for this account.")
	assert.Equal(t, "not_connected: Search Console is not connected for this account.", err.Error())
}
