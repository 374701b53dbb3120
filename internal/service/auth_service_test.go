package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, expiresIn time.Duration) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: "user-1",
		Email:  "f20210001@example.edu",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	service := NewAuthService("test-secret", nil)

	claims, err := service.ValidateToken(signToken(t, "test-secret", jwt.SigningMethodHS256, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	service := NewAuthService("test-secret", nil)

	_, err := service.ValidateToken(signToken(t, "other-secret", jwt.SigningMethodHS256, time.Hour))
	require.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	service := NewAuthService("test-secret", nil)

	_, err := service.ValidateToken(signToken(t, "test-secret", jwt.SigningMethodHS256, -time.Hour))
	require.Error(t, err)
}
