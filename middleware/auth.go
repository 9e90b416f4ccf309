package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
)

type contextKey string

const UserIDKey contextKey = "userID"

// ServiceAuthMiddleware authenticates the bot front end with a shared
// secret and extracts the acting user from the X-User-ID header.
func ServiceAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Service-Token")
		expected := os.Getenv("SERVICE_TOKEN")

		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			respondWithError(w, http.StatusUnauthorized, "Invalid service token")
			return
		}

		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			respondWithError(w, http.StatusUnauthorized, "X-User-ID header required")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the acting user id from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(fmt.Sprintf(`{"error": "%s"}`, message)))
}
