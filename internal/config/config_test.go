package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.True(t, cfg.Auth.RevokeOnPasswordReset)
	assert.False(t, cfg.Auth.CookieSecure, "development cookies are not secure-only by default")
	assert.Equal(t, "log", cfg.Email.Provider)
	assert.Equal(t, 10*time.Second, cfg.Email.SendTimeout)
	assert.False(t, cfg.Storage.UploadsEnabled())
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("RESET_TOKEN_TTL", "30m")
	t.Setenv("SESSION_REVOKE_ON_RESET", "false")
	t.Setenv("S3_BUCKET", "scans")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.0.0/16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ResetTokenTTL)
	assert.False(t, cfg.Auth.RevokeOnPasswordReset)
	assert.True(t, cfg.Storage.UploadsEnabled())
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.Server.TrustedProxies)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("BCRYPT_COST", "high")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Run("missing JWT secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("DB_PASSWORD", "test")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("missing DB password", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
		t.Setenv("DB_PASSWORD", "")
		_, err := Load()
		assert.ErrorContains(t, err, "DB_PASSWORD")
	})
}

func TestValidateJWTSecret(t *testing.T) {
	assert.Error(t, validateJWTSecret("short", "development"))
	assert.Error(t, validateJWTSecret("sixteen-chars-ok", "production"))
	assert.NoError(t, validateJWTSecret("sixteen-chars-ok", "development"))
	assert.NoError(t, validateJWTSecret("a-production-secret-of-32-chars!", "production"))
}

func TestEmailConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EmailConfig
		wantErr bool
	}{
		{"log needs nothing", EmailConfig{Provider: "log"}, false},
		{"ses needs from", EmailConfig{Provider: "ses"}, true},
		{"ses ok", EmailConfig{Provider: "ses", FromAddress: "noreply@example.com"}, false},
		{"smtp needs host", EmailConfig{Provider: "smtp", FromAddress: "noreply@example.com"}, true},
		{"smtp ok", EmailConfig{Provider: "smtp", FromAddress: "noreply@example.com", SMTPHost: "smtp.example.com"}, false},
		{"unknown provider", EmailConfig{Provider: "pigeon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
