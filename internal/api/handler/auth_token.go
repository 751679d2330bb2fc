package handler

import (
	"net/http"

	"github.com/nsgates/gateway/internal/api/request"
	"github.com/nsgates/gateway/internal/api/response"
	"github.com/nsgates/gateway/internal/auth"
	"github.com/nsgates/gateway/internal/core"
)

// AuthToken serves the admin token integration: password login issuing a JWT
// pair, refresh, and logout.
type AuthToken struct {
	tokens *core.TokenService
	users  *core.UserService
	signer *auth.TokenSigner
}

func NewAuthToken(tokens *core.TokenService, users *core.UserService, signer *auth.TokenSigner) *AuthToken {
	return &AuthToken{tokens: tokens, users: users, signer: signer}
}

func (h *AuthToken) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := h.tokens.Login(r.Context(), h.users, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, pair)
}

func (h *AuthToken) Refresh(w http.ResponseWriter, r *http.Request) {
	var req request.Refresh
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	username, err := h.signer.VerifyJWT(req.RefreshToken)
	if err != nil {
		response.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	pair, err := h.tokens.Refresh(r.Context(), h.users, username)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, pair)
}

func (h *AuthToken) Logout(w http.ResponseWriter, r *http.Request) {
	var req request.Refresh
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	username, err := h.signer.VerifyJWT(req.RefreshToken)
	if err != nil {
		response.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	if err := h.tokens.Logout(r.Context(), h.users, username); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
