package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

const userIDHeader = "X-User-Id"

// UserIdentity copies the cashier identifier supplied by the terminal into the request
// context. The header is trusted as-is; terminals sit behind the store network.
func UserIdentity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userIDHeader))
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
