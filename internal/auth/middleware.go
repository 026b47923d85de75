package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// TokenVerifier is satisfied by *Verifier.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Middleware rejects requests without a valid bearer token and stores the claims in the request context.
func Middleware(verifier TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				respondUnauthorized(w, "auth verifier not configured")
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondUnauthorized(w, "missing authorization header")
				return
			}
			token, ok := extractBearerToken(authHeader)
			if !ok {
				respondUnauthorized(w, "invalid authorization header")
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				if log != nil {
					log.Info("auth failure", "path", r.URL.Path, "err", err)
				}
				respondUnauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "Unauthorized",
		"code":  "unauthenticated",
		"hint":  message,
	})
}
