package handler

import (
	"net/http"
	"time"

	"github.com/nsgates/gateway/internal/api/middleware"
	"github.com/nsgates/gateway/internal/api/request"
	"github.com/nsgates/gateway/internal/api/response"
	"github.com/nsgates/gateway/internal/core"
)

type APIKey struct {
	svc *core.APIKeyService
}

func NewAPIKey(svc *core.APIKeyService) *APIKey {
	return &APIKey{svc: svc}
}

// createdAPIKey is the one response that carries the raw key. Every later
// read serializes the model, which omits it.
type createdAPIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Key       string     `json:"key"`
	ExpiresAt *time.Time `json:"expires_at"`
	Revoked   bool       `json:"revoked"`
	CreatedAt time.Time  `json:"created_at"`
}

func (h *APIKey) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateAPIKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m := mutationFor(middleware.GetPrincipal(r.Context()), "Created")
	key, rawKey, err := h.svc.Create(r.Context(), req.Name, req.ExpiresAt, m)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, createdAPIKey{
		ID:        key.ID,
		Name:      key.Name,
		Key:       rawKey,
		ExpiresAt: key.ExpiresAt,
		Revoked:   key.Revoked,
		CreatedAt: key.CreatedAt,
	})
}
