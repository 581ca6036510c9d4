package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/tracker-server-go/internal/model"
)

func TestDeviceAuthMiddleware(t *testing.T) {
	issuer := testIssuer()
	mw := NewDeviceAuthMiddleware(issuer)

	okHandler := func(captured *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*captured = GetDeviceID(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("rejects request without credential", func(t *testing.T) {
		var deviceID string
		req := httptest.NewRequest(http.MethodPost, "/v1/telemetry/location", nil)
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(&deviceID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, deviceID)
	})

	t.Run("accepts a valid device token", func(t *testing.T) {
		tokenStr, err := issuer.IssueDeviceToken("dev-1")
		require.NoError(t, err)

		var deviceID string
		req := httptest.NewRequest(http.MethodPost, "/v1/telemetry/location", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(&deviceID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dev-1", deviceID)
	})

	t.Run("rejects a user token on the telemetry path", func(t *testing.T) {
		tokenStr, err := issuer.IssueUserToken("parent-1", model.RoleParent, true, time.Hour)
		require.NoError(t, err)

		var deviceID string
		req := httptest.NewRequest(http.MethodPost, "/v1/telemetry/location", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		rec := httptest.NewRecorder()

		mw.Handler(okHandler(&deviceID)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, deviceID)
	})
}

func TestBodyLimitMiddleware(t *testing.T) {
	t.Run("rejects oversized declared bodies", func(t *testing.T) {
		mw := NewBodyLimitMiddleware(16)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.ContentLength = 1024
		rec := httptest.NewRecorder()

		mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("passes small bodies through", func(t *testing.T) {
		mw := NewBodyLimitMiddleware(1024)

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()

		mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("defaults to 1MB when unset", func(t *testing.T) {
		mw := NewBodyLimitMiddleware(0)
		assert.Equal(t, int64(DefaultMaxBodySize), mw.maxSize)
	})
}
