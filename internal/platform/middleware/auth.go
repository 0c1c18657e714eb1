package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the claims we expect from the token validator.
type Claims struct {
	UserID string
	Role   string
	OrgID  string
}

// Context keys for storing authenticated caller information.
type contextKeyUserID struct{}
type contextKeyRole struct{}
type contextKeyOrgID struct{}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(contextKeyUserID{}).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetRole retrieves the authenticated caller's role from the context.
func GetRole(ctx context.Context) string {
	role, ok := ctx.Value(contextKeyRole{}).(string)
	if !ok {
		return ""
	}
	return role
}

// GetOrgID retrieves the caller's organization ID from the context, if any.
func GetOrgID(ctx context.Context) string {
	orgID, ok := ctx.Value(contextKeyOrgID{}).(string)
	if !ok {
		return ""
	}
	return orgID
}

// WithCaller injects caller identity into the context. Exported for tests.
func WithCaller(ctx context.Context, userID, role, orgID string) context.Context {
	ctx = context.WithValue(ctx, contextKeyUserID{}, userID)
	ctx = context.WithValue(ctx, contextKeyRole{}, role)
	return context.WithValue(ctx, contextKeyOrgID{}, orgID)
}

// RequireAuth validates the Authorization bearer token and stores the caller
// identity in the request context. Services never read ambient auth state;
// handlers pass the resolved identity down as explicit parameters.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing bearer token",
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				writeUnauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			logger.DebugContext(ctx, "caller authenticated",
				"user_id", claims.UserID,
				"role", claims.Role,
				"request_id", GetRequestID(ctx),
			)
			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, claims.UserID, claims.Role, claims.OrgID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","error_description":"missing or invalid bearer token"}`))
}
