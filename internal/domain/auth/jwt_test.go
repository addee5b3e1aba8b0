package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "ops@example.com", "operador", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, "ops@example.com", user.Email)
	assert.Equal(t, "operador", user.Role)
}

func TestJWTService_SubjectOnlyToken(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "supabase-uuid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	user, err := NewJWTService(DefaultJWTConfig("s")).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "supabase-uuid", user.UserID)
	assert.Empty(t, user.Role)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("right"))
	other := NewJWTService(DefaultJWTConfig("wrong"))

	forged, _, err := other.GenerateAccessToken("u", "", "admin", time.Minute)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u"}).SignedString([]byte("right"))
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		UserID:           "u",
	}).SignedString([]byte("right"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte("right"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":    "not-a-jwt",
		"bad secret": forged,
		"no expiry":  noExp,
		"expired":    expired,
		"no subject": noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
