package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const CredentialKey contextKey = "credential"

// RequireAuthorization rejects requests without an Authorization header
// and stashes the raw header value in the context for the handler. The
// credential is opaque; it is forwarded upstream, never inspected.
func RequireAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := r.Header.Get("Authorization")
		if credential == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"message": "Authorization header is required.",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CredentialKey, credential)))
	})
}
