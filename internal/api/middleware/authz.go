package middleware

import (
	"errors"
	"net/http"

	"github.com/nsgates/gateway/internal/api/response"
	"github.com/nsgates/gateway/internal/auth"
)

// RequirePermission gates a route on a single permission code. API-key
// principals carry every permission; user principals must hold the code in
// their resolved set. The 403 body names the missing code.
func RequirePermission(code string) func(http.Handler) http.Handler {
	guard := auth.Require(code)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := guard(GetPrincipal(r.Context())); err != nil {
				var forbidden *auth.ForbiddenError
				if errors.As(err, &forbidden) {
					response.WriteError(w, http.StatusForbidden, forbidden.Error())
					return
				}
				response.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
