package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/tracker-server-go/internal/model"
)

func testIssuer() *Issuer {
	return NewIssuer("user-secret-0123456789abcdef0123", "device-secret-0123456789abcdef01", time.Hour)
}

func TestIssuer_DeviceToken(t *testing.T) {
	t.Run("round-trips the device id", func(t *testing.T) {
		issuer := testIssuer()

		tokenStr, err := issuer.IssueDeviceToken("dev-1")
		require.NoError(t, err)

		claims, err := issuer.ParseDeviceToken(tokenStr)
		require.NoError(t, err)
		assert.Equal(t, "dev-1", claims.DeviceID)
	})

	t.Run("rejects a token signed with a different secret", func(t *testing.T) {
		other := NewIssuer("user-secret-0123456789abcdef0123", "another-device-secret-0123456789", time.Hour)
		tokenStr, err := other.IssueDeviceToken("dev-1")
		require.NoError(t, err)

		_, err = testIssuer().ParseDeviceToken(tokenStr)
		assert.Error(t, err)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		shortLived := NewIssuer("user-secret-0123456789abcdef0123", "device-secret-0123456789abcdef01", -time.Minute)
		tokenStr, err := shortLived.IssueDeviceToken("dev-1")
		require.NoError(t, err)

		_, err = testIssuer().ParseDeviceToken(tokenStr)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := testIssuer().ParseDeviceToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestIssuer_UserToken(t *testing.T) {
	t.Run("round-trips identity, role and verification", func(t *testing.T) {
		issuer := testIssuer()

		tokenStr, err := issuer.IssueUserToken("user-1", model.RoleParent, true, time.Hour)
		require.NoError(t, err)

		claims, err := issuer.ParseUserToken(tokenStr)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, model.RoleParent, claims.Role)
		assert.True(t, claims.Verified)
	})

	t.Run("device token never verifies as a user token", func(t *testing.T) {
		issuer := testIssuer()

		tokenStr, err := issuer.IssueDeviceToken("dev-1")
		require.NoError(t, err)

		_, err = issuer.ParseUserToken(tokenStr)
		assert.Error(t, err)
	})

	t.Run("user token never verifies as a device token", func(t *testing.T) {
		issuer := testIssuer()

		tokenStr, err := issuer.IssueUserToken("user-1", model.RoleChild, true, time.Hour)
		require.NoError(t, err)

		_, err = issuer.ParseDeviceToken(tokenStr)
		assert.Error(t, err)
	})
}
