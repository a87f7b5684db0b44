package api

import (
	"net/http"
	"strings"
)

// userHeader carries the caller identity set by the upstream gateway
const userHeader = "X-User-ID"

// RequireUser rejects requests without a caller identity and stores it in context.
// Browsers cannot set headers on websocket handshakes, so user_id is also
// accepted as a query parameter.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID == "" {
			userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "missing_user", "provide the "+userHeader+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), userID)))
	})
}
