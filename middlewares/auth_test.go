package middlewares

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The HS256 secret is loaded once per process, so every test in this
// package shares the same value.
func setSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
}

func TestAccessTokenRoundTrip(t *testing.T) {
	setSecret(t)

	raw, err := GenerateAccessToken("user-1", "session-1")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := ParseAccessToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "session-1", claims.SessionId)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	setSecret(t)

	_, err := ParseAccessToken("not-a-token")
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	setSecret(t)

	claims := &Claims{
		SessionId: "session-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = ParseAccessToken(raw)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsForeignAlgorithm(t *testing.T) {
	setSecret(t)

	claims := &Claims{
		SessionId: "session-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseAccessToken(raw)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	setSecret(t)

	claims := &Claims{
		SessionId: "session-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseAccessToken(raw)
	assert.Error(t, err)
}

func TestParseAccessTokenRequiresSessionClaim(t *testing.T) {
	setSecret(t)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseAccessToken(raw)
	assert.Error(t, err)
}

func TestIsSuperAdmin(t *testing.T) {
	t.Setenv("SUPER_ADMINS", "Root@Example.com, ops@example.com")

	tests := []struct {
		email string
		want  bool
	}{
		{"root@example.com", true},
		{"ROOT@EXAMPLE.COM", true},
		{"ops@example.com", true},
		{" ops@example.com ", true},
		{"user@example.com", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsSuperAdmin(tc.email), tc.email)
	}
}

func TestIsSuperAdminEmptyList(t *testing.T) {
	t.Setenv("SUPER_ADMINS", "")
	assert.False(t, IsSuperAdmin("anyone@example.com"))
}
