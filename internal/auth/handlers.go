package auth

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-discount/internal/common"
)

// Handler exposes the token login endpoint.
type Handler struct {
	Service *Service
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/login. Credentials come from the Basic authorization
// header or, failing that, a JSON body. Responds 404 when tokens are disabled.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	if !h.Service.TokensEnabled() {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "token login is disabled", nil)
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
			return
		}
		username, password = req.Username, req.Password
	}
	if username == "" || password == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "username and password are required", nil)
		return
	}

	if err := h.Service.VerifyPassword(username, password); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.Service.IssueAccessToken(username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": token})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := common.AsAppError(err); !ok {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("login_failed")
	}
	common.WriteError(w, err)
}
