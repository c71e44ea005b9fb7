package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/adsign/internal/adsignd/config"
)

func testService() *JWTService {
	return NewJWTService(config.AuthConfig{
		TokenSigningKey: "0123456789abcdef0123456789abcdef",
		TokenExpiry:     time.Hour,
		Issuer:          "adsignd",
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := testService()

	token, expiresAt, err := svc.IssueToken(ctx, "admin-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	adminID, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", adminID)

	_, _, err = svc.IssueToken(ctx, "")
	assert.Error(t, err)
}

func TestJWTService_Rejects(t *testing.T) {
	ctx := context.Background()
	svc := testService()
	token, _, err := svc.IssueToken(ctx, "admin-1")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := testService()
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewJWTService(config.AuthConfig{
			TokenSigningKey: "ffffffffffffffffffffffffffffffff",
			TokenExpiry:     time.Hour,
			Issuer:          "adsignd",
		})
		_, err := other.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := testService()
		other.issuer = "someone-else"
		_, err := other.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Issuer:    "adsignd",
			Subject:   "admin-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(ctx, unsigned)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
