package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/famtrack/tracker-server-go/internal/token"
)

const DeviceContextKey contextKey = "device"

func GetDeviceID(ctx context.Context) string {
	if id, ok := ctx.Value(DeviceContextKey).(string); ok {
		return id
	}
	return ""
}

// DeviceAuthMiddleware verifies the long-lived device credential issued at
// redemption. User tokens never pass this check, so a stolen user token
// cannot feed telemetry.
type DeviceAuthMiddleware struct {
	issuer *token.Issuer
}

func NewDeviceAuthMiddleware(issuer *token.Issuer) *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{issuer: issuer}
}

func (m *DeviceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing device credential",
			})
			return
		}

		claims, err := m.issuer.ParseDeviceToken(tokenStr)
		if err != nil {
			log.Warn().Msg("device auth middleware: invalid device token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid or expired device credential",
			})
			return
		}

		ctx := context.WithValue(r.Context(), DeviceContextKey, claims.DeviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
