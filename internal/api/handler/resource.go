package handler

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/nsgates/gateway/internal/api/middleware"
	"github.com/nsgates/gateway/internal/api/request"
	"github.com/nsgates/gateway/internal/api/response"
	"github.com/nsgates/gateway/internal/core"
)

// Resource serves one registered entity type. The same handler backs both
// authorization schemes; only the middleware chain in front of it differs.
type Resource struct {
	entity core.EntityType
}

func NewResource(entity core.EntityType) *Resource {
	return &Resource{entity: entity}
}

func (h *Resource) List(w http.ResponseWriter, r *http.Request) {
	scope, err := readScope(r, h.entity.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	p, err := request.ParsePagination(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, hasMore, err := h.entity.Store.List(r.Context(), scope, p.Limit, p.Cursor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	nextCursor := ""
	if hasMore {
		nextCursor = lastID(items)
	}
	response.WritePaginated(w, http.StatusOK, items, nextCursor, hasMore)
}

func (h *Resource) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	scope, err := readScope(r, h.entity.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	item, err := h.entity.Store.Get(r.Context(), id, scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, item)
}

func (h *Resource) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields, err := request.DecodeFields(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Every field name must be on the entity's patchable whitelist. An
	// unknown name is rejected outright rather than ignored.
	allowed := h.entity.Store.Fields()
	for name := range fields {
		if !slices.Contains(allowed, name) {
			response.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("field %q is not patchable", name))
			return
		}
	}

	m := mutationFor(middleware.GetPrincipal(r.Context()), "Modified")
	item, err := h.entity.Store.Patch(r.Context(), id, fields, m)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, item)
}

func (h *Resource) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m := mutationFor(middleware.GetPrincipal(r.Context()), "Deleted")
	if err := h.entity.Store.SoftDelete(r.Context(), id, m); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Resource) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m := mutationFor(middleware.GetPrincipal(r.Context()), "Restored")
	item, err := h.entity.Store.Restore(r.Context(), id, m)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, item)
}

func (h *Resource) History(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	revisions, err := h.entity.Store.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, revisions)
}
