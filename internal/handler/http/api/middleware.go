package api_http

import (
	"net/http"
	"strings"

	"bank/internal/auth"

	"go.uber.org/zap"
)

// RequireBearer rejects requests without a valid bearer token and stores the
// token subject as the request principal.
func RequireBearer(tokens *auth.TokenManager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				renderUnauthorized(w, "Missing bearer token")
				return
			}

			userID, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				logger.Warn("Rejected bearer token", zap.String("path", r.URL.Path), zap.Error(err))
				renderUnauthorized(w, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), userID)))
		})
	}
}

func renderUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="bank"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":401}`))
}
