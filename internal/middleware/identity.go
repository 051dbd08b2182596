package middleware

import (
	"context"
	"net/http"

	"github.com/bitmitra/realtime/pkg/utils"
)

// UserIDHeader carries the caller identity resolved by the upstream
// authentication service. This subsystem consumes the identity as an opaque
// string and never validates its existence itself.
const UserIDHeader = "X-User-ID"

type contextKey struct{}

var userIDKey contextKey

// Identity extracts the authenticated caller identity and stores it in the
// request context, rejecting requests that arrive without one.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			utils.RespondError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// UserIDFrom returns the caller identity placed by Identity, or "" when the
// middleware did not run.
func UserIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
