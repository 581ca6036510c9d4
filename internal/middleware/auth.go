package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/famtrack/tracker-server-go/internal/service"
	"github.com/famtrack/tracker-server-go/internal/token"
)

type contextKey string

const ActorContextKey contextKey = "actor"

func GetActor(ctx context.Context) *service.Actor {
	if actor, ok := ctx.Value(ActorContextKey).(*service.Actor); ok {
		return actor
	}
	return nil
}

// AuthMiddleware verifies user access tokens. Device tokens are signed with
// a different secret and never pass this check.
type AuthMiddleware struct {
	issuer *token.Issuer
}

func NewAuthMiddleware(issuer *token.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		claims, err := m.issuer.ParseUserToken(tokenStr)
		if err != nil {
			log.Warn().Msg("auth middleware: invalid user token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid or expired token",
			})
			return
		}

		actor := &service.Actor{
			ID:       claims.UserID,
			Role:     claims.Role,
			Verified: claims.Verified,
		}

		ctx := context.WithValue(r.Context(), ActorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
