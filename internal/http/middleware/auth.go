package middleware

import (
	"context"
	"net/http"
	"strings"
)

const actorContextKey contextKey = "actor_id"

// Auth enforces bearer-token authentication on /v1/ routes and resolves
// the acting user for owner-scoped resources. An empty required token
// disables the check (local development).
func Auth(requiredToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			if requiredToken != "" {
				authorization := r.Header.Get("Authorization")
				const prefix = "Bearer "
				if !strings.HasPrefix(authorization, prefix) {
					writeUnauthorized(w, r)
					return
				}
				token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
				if token == "" || token != requiredToken {
					writeUnauthorized(w, r)
					return
				}
			}

			actor := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
			if actor == "" {
				actor = "default"
			}
			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActorID returns the authenticated actor for the request, or "default"
// when authentication is disabled.
func GetActorID(ctx context.Context) string {
	value, _ := ctx.Value(actorContextKey).(string)
	if value == "" {
		return "default"
	}
	return value
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
}
