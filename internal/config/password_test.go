package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordConfig_FromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantCost int
		wantErr  bool
	}{
		{"default cost", map[string]string{}, 12, false},
		{"custom cost", map[string]string{"BCRYPT_COST": "10"}, 10, false},
		{"test cost", map[string]string{"BCRYPT_COST": "4"}, bcrypt.MinCost, false},
		{"too low", map[string]string{"BCRYPT_COST": "9"}, 0, true},
		{"too high", map[string]string{"BCRYPT_COST": "15"}, 0, true},
		{"not a number", map[string]string{"BCRYPT_COST": "high"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := passwordConfigFrom(envFrom(tt.env))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCost, cfg.BcryptCost)
		})
	}
}

func TestPasswordConfig_HashAndVerify(t *testing.T) {
	cfg := &PasswordConfig{BcryptCost: bcrypt.MinCost}
	hash, err := cfg.HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.True(t, cfg.VerifyPassword("hunter2", hash))
	assert.False(t, cfg.VerifyPassword("hunter3", hash))

	again, err := cfg.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "each hash gets its own salt")
}

func TestPasswordConfig_Pepper(t *testing.T) {
	peppered := &PasswordConfig{BcryptCost: bcrypt.MinCost, Pepper: "pepper-1"}
	hash, err := peppered.HashPassword("pw")
	require.NoError(t, err)
	assert.True(t, peppered.VerifyPassword("pw", hash))

	rotated := &PasswordConfig{BcryptCost: bcrypt.MinCost, Pepper: "pepper-2"}
	assert.False(t, rotated.VerifyPassword("pw", hash))
	assert.False(t, (&PasswordConfig{BcryptCost: bcrypt.MinCost}).VerifyPassword("pw", hash))
}

func TestPasswordConfig_TooLong(t *testing.T) {
	cfg := &PasswordConfig{BcryptCost: bcrypt.MinCost}
	_, err := cfg.HashPassword(strings.Repeat("x", 80))
	assert.Error(t, err, "bcrypt rejects inputs over 72 bytes")
}
