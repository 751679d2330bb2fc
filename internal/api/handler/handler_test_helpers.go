package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/nsgates/gateway/internal/api/middleware"
	"github.com/nsgates/gateway/internal/auth"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// withUser injects a user principal holding the given permission codes.
func withUser(r *http.Request, username string, permissions ...string) *http.Request {
	p := auth.NewUserPrincipal("u-"+username, username, permissions)
	return r.WithContext(middleware.SetPrincipal(r.Context(), p))
}

// withAPIKey injects an API-key principal.
func withAPIKey(r *http.Request, keyName string) *http.Request {
	p := auth.NewAPIKeyPrincipal(keyName)
	return r.WithContext(middleware.SetPrincipal(r.Context(), p))
}
