package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/backend/internal/apierr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Empty(t, body.Error)
}

func TestErrorEnvelopeFromAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apierr.Permission("access_denied", "no access to this property"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "no access to this property", body.Error)
	assert.Equal(t, "access_denied", body.Code)
}

func TestErrorRateLimitHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apierr.RateLimited(0, 1748779200))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1748779200", rec.Header().Get("X-RateLimit-Reset"))
}

func TestErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("pq: connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "internal", body.Code)
	assert.NotContains(t, body.Error, "pq:")
}

func TestUpstreamEnvelopeMarkers(t *testing.T) {
	rec := httptest.NewRecorder()
	Upstream(rec, json.RawMessage(`{"rows":[]}`), false, true, []string{"sc-domain:example.com"})

	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.True(t, body.NotFound)
	assert.Equal(t, []string{"sc-domain:example.com"}, body.Suggestions)
}
