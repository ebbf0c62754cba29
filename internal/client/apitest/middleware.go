package apitest

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const userKey ctxKey = "user"

// bearerAuth resolves the Authorization bearer token to a registered e-mail and
// stores it in the request context. Unknown or missing tokens get 401 with a
// JSON detail body.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		s.mu.Lock()
		email, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromContext returns the e-mail stored by bearerAuth, or "".
func userFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userKey).(string); ok {
		return s
	}
	return ""
}
