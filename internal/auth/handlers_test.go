package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginIssuesToken(t *testing.T) {
	svc := newTestService(t, testSecret)
	h := &Handler{Service: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth(testUser, testPassword)
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data AccessToken `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "Bearer", body.Data.TokenType)
	subject, err := svc.ParseAccessToken(body.Data.Token)
	require.NoError(t, err)
	require.Equal(t, testUser, subject)
}

func TestLoginWithJSONBody(t *testing.T) {
	h := &Handler{Service: newTestService(t, testSecret)}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"cashier","password":"s3cret-pass"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginFailures(t *testing.T) {
	h := &Handler{Service: newTestService(t, testSecret)}

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth(testUser, "wrong")
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{`))
	rr = httptest.NewRecorder()
	h.Login(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"cashier"}`))
	rr = httptest.NewRecorder()
	h.Login(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginDisabledWithoutSecret(t *testing.T) {
	h := &Handler{Service: newTestService(t, "")}
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.SetBasicAuth(testUser, testPassword)
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
