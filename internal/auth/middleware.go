package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-discount/internal/common"
)

const (
	SchemeBasic  = "basic"
	SchemeBearer = "bearer"
)

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Service *Service
	Realm   string
}

// RequireAuth accepts HTTP Basic credentials, or a bearer token when tokens are
// enabled, and rejects the request with 401 otherwise.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
			return
		}
		username, scheme, err := m.authenticate(r)
		if err != nil {
			m.challenge(w, r, err)
			return
		}
		ctx := common.WithPrincipal(r.Context(), username, scheme)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errNoCredentials = errors.New("auth: credentials missing")

func (m Middleware) authenticate(r *http.Request) (string, string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	switch {
	case header == "":
		return "", "", errNoCredentials
	case strings.HasPrefix(strings.ToLower(header), "bearer ") && m.Service.TokensEnabled():
		subject, err := m.Service.ParseAccessToken(header[7:])
		if err != nil {
			return "", "", err
		}
		return subject, SchemeBearer, nil
	}
	username, password, ok := r.BasicAuth()
	if !ok {
		return "", "", errNoCredentials
	}
	if err := m.Service.VerifyPassword(username, password); err != nil {
		return "", "", err
	}
	return username, SchemeBasic, nil
}

func (m Middleware) challenge(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, errNoCredentials) {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("authentication_failed")
	}
	realm := m.Realm
	if realm == "" {
		realm = "discount"
	}
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	if appErr, ok := common.AsAppError(err); ok && appErr.Status() == http.StatusUnauthorized {
		common.JSONError(w, http.StatusUnauthorized, appErr.Code, appErr.Message, nil)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
}
