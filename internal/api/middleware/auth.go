package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nsgates/gateway/internal/api/response"
	"github.com/nsgates/gateway/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// GetPrincipal extracts the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey).(*auth.Principal)
	return p
}

// SetPrincipal returns a context carrying the given principal.
func SetPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func withPrincipal(r *http.Request, p *auth.Principal) *http.Request {
	return r.WithContext(SetPrincipal(r.Context(), p))
}

func writeVerifyError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrProviderUnavailable) {
		response.WriteError(w, http.StatusServiceUnavailable, "authorization provider unavailable")
		return
	}
	response.WriteError(w, http.StatusUnauthorized, "invalid or expired credentials")
}

// BearerAuth validates the Authorization bearer token through the verifier
// and stores the resulting user principal in the request context.
func BearerAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			p, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				writeVerifyError(w, err)
				return
			}
			next.ServeHTTP(w, withPrincipal(r, p))
		})
	}
}

// APIKeyAuth validates the X-API-Key header and stores the resulting API-key
// principal in the request context.
func APIKeyAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			p, err := verifier.VerifyAPIKey(r.Context(), key)
			if err != nil {
				writeVerifyError(w, err)
				return
			}
			next.ServeHTTP(w, withPrincipal(r, p))
		})
	}
}
