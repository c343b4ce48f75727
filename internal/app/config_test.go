package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BUZZER_DATABASE_URL", "postgres://localhost/buzzer")
	t.Setenv("BUZZER_AUTH_ACCESS_SECRET", "access")
	t.Setenv("BUZZER_AUTH_REFRESH_SECRET", "refresh")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := loadConfig(true)
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 10, cfg.RateLimit.AuthMax)
	assert.Equal(t, "log", cfg.Events.Driver)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, time.Hour, cfg.S3.URLTTL)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing database",
			env:  map[string]string{"BUZZER_DATABASE_URL": "", "DATABASE_URL": ""},
			want: "database URL is required",
		},
		{
			name: "missing secret",
			env:  map[string]string{"BUZZER_AUTH_REFRESH_SECRET": ""},
			want: "secrets are required",
		},
		{
			name: "shared secret",
			env:  map[string]string{"BUZZER_AUTH_REFRESH_SECRET": "access"},
			want: "must differ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
