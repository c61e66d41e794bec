package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, BadRequest("VALIDATION_ERROR", "invalid payload", map[string]string{"items[0].price": "gte"}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Equal(t, "invalid payload", body.Error.Message)
	require.NotNil(t, body.Error.Details)
}

func TestWriteErrorUnknown(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"INTERNAL"`)
	require.NotContains(t, rr.Body.String(), "boom")
}

func TestAppErrorMessageAndStatus(t *testing.T) {
	cause := errors.New("redis down")
	err := NewAppError("UNAVAILABLE", "try later", 0, cause)
	require.Equal(t, "try later: redis down", err.Error())
	require.Equal(t, http.StatusInternalServerError, err.Status())
	require.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("handler: %w", err)
	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	require.Same(t, err, got)

	_, ok = AsAppError(cause)
	require.False(t, ok)
}

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "cashier", "basic")
	user, ok := Principal(ctx)
	require.True(t, ok)
	require.Equal(t, "cashier", user)
	require.Equal(t, "basic", AuthScheme(ctx))
}
