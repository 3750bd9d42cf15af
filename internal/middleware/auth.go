package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/touristlog/touristlog-api/internal/pkg/jwt"
	"github.com/touristlog/touristlog-api/internal/pkg/response"
)

type contextKey string

const SessionKey contextKey = "session"

// Session is the authenticated caller as asserted by the identity provider.
type Session struct {
	UserID       string
	IsAdmin      bool
	IsAdvertiser bool
}

// Auth returns middleware that validates the session token
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateSessionToken(parts[1])
			if err != nil {
				if err == jwt.ErrExpiredToken {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			ctx := WithSession(r.Context(), Session{
				UserID:       claims.UserID,
				IsAdmin:      claims.IsAdmin,
				IsAdvertiser: claims.IsAdvertiser,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession stores the session in the context
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// GetSession extracts the session from context
func GetSession(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(SessionKey).(Session)
	if !ok || s.UserID == "" {
		return Session{}, false
	}
	return s, true
}

// RequireAdmin returns middleware that requires the admin flag
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := GetSession(r.Context())
			if !ok {
				response.Unauthorized(w, "unauthorized")
				return
			}
			if !s.IsAdmin {
				response.Forbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
