package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestJWTConfig(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantHours int
		wantIss   string
		wantErr   string
	}{
		{"defaults", map[string]string{"JWT_SECRET": "s"}, 24, DefaultJWTIssuer, ""},
		{"custom", map[string]string{"JWT_SECRET": "s", "JWT_EXPIRATION_HOURS": "2", "JWT_ISSUER": "vault-dev"}, 2, "vault-dev", ""},
		{"missing secret", map[string]string{}, 0, "", "JWT_SECRET is required"},
		{"bad hours", map[string]string{"JWT_SECRET": "s", "JWT_EXPIRATION_HOURS": "soon"}, 0, "", "invalid JWT_EXPIRATION_HOURS"},
		{"zero hours", map[string]string{"JWT_SECRET": "s", "JWT_EXPIRATION_HOURS": "0"}, 0, "", "at least 1 hour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := jwtConfigFrom(envFrom(tt.env))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHours, cfg.ExpirationHours)
			assert.Equal(t, tt.wantIss, cfg.Issuer)
			assert.Equal(t, time.Duration(tt.wantHours)*time.Hour, cfg.TTL())
		})
	}
}

func TestNewJWTConfig_ReadsProcessEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_EXPIRATION_HOURS", "")
	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Secret)
}
