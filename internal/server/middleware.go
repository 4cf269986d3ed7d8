package server

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type ctxKey int

const ctxKeySession ctxKey = iota

// sessionMiddleware resolves the bearer token to a live session.
func sessionMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || token == "" {
				writeError(w, http.StatusUnauthorized, "invalid or missing session token")
				return
			}
			ls, err := reg.Get(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or missing session token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeySession, ls)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func liveFrom(r *http.Request) *liveSession {
	return r.Context().Value(ctxKeySession).(*liveSession)
}

// adminKeyMiddleware guards developer escapes with a bcrypt-hashed key sent
// in X-Admin-Key. An empty hash disables the guarded routes.
func adminKeyMiddleware(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				writeError(w, http.StatusForbidden, "admin escapes are disabled")
				return
			}
			key := r.Header.Get("X-Admin-Key")
			if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				writeError(w, http.StatusForbidden, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
