package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/nsgates/gateway/internal/api/middleware"
	"github.com/nsgates/gateway/internal/api/response"
	"github.com/nsgates/gateway/internal/auth"
	"github.com/nsgates/gateway/internal/core"
)

// writeServiceError maps service-layer failures onto the shared error
// envelope. Anything unrecognized is a 500 with a generic detail; internal
// error text never leaks to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		forbidden  *auth.ForbiddenError
		validation *core.ValidationError
		conflict   *core.ConflictError
		duplicate  *core.DuplicateError
		resolution *core.PrincipalResolutionError
	)
	switch {
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, "not found")
	case errors.As(err, &forbidden):
		response.WriteError(w, http.StatusForbidden, forbidden.Error())
	case errors.As(err, &validation):
		response.WriteError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &conflict):
		response.WriteError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &duplicate):
		response.WriteError(w, http.StatusConflict, duplicate.Error())
	case errors.As(err, &resolution):
		response.WriteError(w, http.StatusInternalServerError, resolution.Error())
	case errors.Is(err, auth.ErrProviderUnavailable):
		response.WriteError(w, http.StatusServiceUnavailable, "authorization provider unavailable")
	case errors.Is(err, core.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		response.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		response.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// mutationFor builds audit attribution for one write. User principals are
// re-resolved at commit time via Username; API-key principals leave Username
// empty so the revision's history_user_id stays NULL.
func mutationFor(p *auth.Principal, action string) core.Mutation {
	if p == nil {
		return core.Mutation{Reason: action}
	}
	if p.Kind == auth.KindAPIKey {
		return core.Mutation{Reason: fmt.Sprintf("%s via API Key %s", action, p.KeyName)}
	}
	return core.Mutation{
		Reason:   fmt.Sprintf("%s by %s", action, p.Username),
		Username: p.Username,
	}
}

// lastID reads the ID field of the last element of an entity slice for the
// next-page cursor. Stores return typed slices; the handler stays generic.
func lastID(items any) string {
	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return ""
	}
	f := v.Index(v.Len() - 1).FieldByName("ID")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

// readScope resolves the include_deleted query flag. Seeing soft-deleted
// rows requires the entity's delete permission; API-key principals always
// qualify.
func readScope(r *http.Request, entityName string) (core.Scope, error) {
	if r.URL.Query().Get("include_deleted") != "true" {
		return core.ScopeDefault, nil
	}
	p := middleware.GetPrincipal(r.Context())
	if err := auth.Require(auth.DeleteCode(entityName))(p); err != nil {
		return core.ScopeDefault, err
	}
	return core.ScopeAll, nil
}
