package server

import (
	"net/http"
	"strings"
)

// AuthMiddleware verifies the bearer access credential and places the caller
// identity into the request context. Validation is stateless; revocation is
// only visible at refresh time.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.tokens.Validate(strings.TrimPrefix(header, prefix))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "reauthenticate")
			return
		}
		ctx := WithIdentity(r.Context(), Identity{
			PrincipalID: claims.Subject,
			FamilyID:    claims.FamilyID,
			Roles:       claims.Roles,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
