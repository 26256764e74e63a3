package middleware

import (
	"net/http"

	"github.com/thanksdoc/payrecon/internal/domain"
)

// AuthToken copies the Authorization header into the request context
// untouched. Authentication belongs to the backend that issued the token, so
// nothing here validates it or rejects a request without one.
func AuthToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := domain.NewContextWithAuthToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
