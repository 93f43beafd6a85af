package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonathan/resume-vault/internal/config"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T, expirationHours int) *JWTService {
	return NewJWTService(&config.JWTConfig{
		Secret:          testSecret,
		ExpirationHours: expirationHours,
		Issuer:          config.DefaultJWTIssuer,
	})
}

var dana = types.Developer{UserID: "d1", Name: "dana"}

func TestJWTService_GenerateToken(t *testing.T) {
	service := setupTestJWTService(t, 24)

	token, err := service.GenerateToken(dana)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3, "JWT should have 3 parts separated by dots")

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "d1", claims.UserID)
	assert.Equal(t, "dana", claims.Username)
	assert.Equal(t, types.RoleDeveloper, claims.Role)
	assert.Equal(t, config.DefaultJWTIssuer, claims.Issuer)

	p, err := claims.GetPrincipal()
	require.NoError(t, err)
	assert.Equal(t, dana, p)
}

func TestJWTService_Expiry(t *testing.T) {
	service := setupTestJWTService(t, 2)
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, err := service.GenerateToken(dana)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(2*time.Hour), claims.ExpiresAt.Time.UTC())

	service.now = func() time.Time { return issued.Add(3 * time.Hour) }
	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestJWTService_ValidateToken_InvalidSignature(t *testing.T) {
	service1 := setupTestJWTService(t, 24)
	service2 := setupTestJWTService(t, 24)
	service2.config.Secret = "different-secret-key-for-jwt-signing-minimum-32-bytes"

	token, err := service1.GenerateToken(dana)
	require.NoError(t, err)

	claims, err := service2.ValidateToken(token)
	assert.Nil(t, claims)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestJWTService_ValidateToken_Rejects(t *testing.T) {
	service := setupTestJWTService(t, 24)

	sign := func(method jwt.SigningMethod, key any, claims *Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(mutate func(*Claims)) *Claims {
		now := time.Now()
		c := &Claims{
			UserID: "d1", Username: "dana", Role: types.RoleDeveloper,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    config.DefaultJWTIssuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
			},
		}
		mutate(c)
		return c
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"one part", "invalid"},
		{"two parts", "invalid.token"},
		{"invalid base64", "invalid.base64.signature"},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), valid(func(*Claims) {}))},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), valid(func(c *Claims) { c.Issuer = "someone-else" }))},
		{"unknown role", sign(jwt.SigningMethodHS256, []byte(testSecret), valid(func(c *Claims) { c.Role = "owner" }))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestClaims_GetPrincipalNeedsID(t *testing.T) {
	_, err := (&Claims{Role: types.RoleBidder}).GetPrincipal()
	assert.Error(t, err)
}
