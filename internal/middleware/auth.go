package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/mmynk/residuals/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// OperatorIDKey is the context key for the authenticated operator ID.
	OperatorIDKey contextKey = "operator_id"
	// EmailKey is the context key for the authenticated operator's email.
	EmailKey contextKey = "email"
)

// GetOperatorID extracts the operator ID from the context.
// Returns empty string if not found.
func GetOperatorID(ctx context.Context) string {
	id, _ := ctx.Value(OperatorIDKey).(string)
	return id
}

// GetEmail extracts the operator email from the context.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// WithOperator returns a context carrying the operator identity.
func WithOperator(ctx context.Context, operatorID, email string) context.Context {
	ctx = context.WithValue(ctx, OperatorIDKey, operatorID)
	return context.WithValue(ctx, EmailKey, email)
}

// RequireAuth returns a middleware that validates bearer tokens and rejects
// unauthenticated calls. The operator ID and email are added to the context.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := jwtManager.Validate(parts[1])
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithOperator(ctx, claims.OperatorID, claims.Email), req)
		}
	}
}
