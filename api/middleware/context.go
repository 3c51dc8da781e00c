package middleware

import "context"

type cashierKey struct{}

// WithUserID stores the cashier id reported by the terminal.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cashierKey{}, userID)
}

// UserIDFromContext returns the cashier id, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(cashierKey{}).(string)
	return userID
}
