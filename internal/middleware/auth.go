package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brickvault/platform/internal/app/services/auth"
	"github.com/brickvault/platform/pkg/logger"
)

// TokenParser validates bearer tokens. Satisfied by *auth.Service.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthMiddleware authenticates requests with bearer tokens.
type AuthMiddleware struct {
	parser    TokenParser
	log       *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates an authentication middleware. Requests to one of
// skipPaths pass through unauthenticated.
func NewAuthMiddleware(parser TokenParser, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	return &AuthMiddleware{
		parser:    parser,
		log:       log,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.parser.Parse(parts[1])
		if err != nil {
			m.log.WithError(err).
				WithField("path", r.URL.Path).
				Warn("token validation failed")
			unauthorized(w, "invalid token")
			return
		}
		// Refresh tokens only exchange for new pairs, never grant API access.
		if claims.Type != auth.TokenTypeAccess {
			unauthorized(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		ctx = context.WithValue(ctx, roleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only requests whose authenticated role is in roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == "" {
				unauthorized(w, "authentication required")
				return
			}
			if !allowed[GetUserRole(r.Context())] {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
