package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsshelf/shelf-auth/config"
)

const signingKey = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", signingKey)
	t.Setenv("ADMIN_EMAIL", " Admin@Example.com ")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, signingKey, cfg.GetSigningKey())
	assert.Equal(t, "HS256", cfg.GetSigningMethod())
	assert.Equal(t, 60, cfg.GetTokenExpiration())
	assert.Equal(t, "newsshelf", cfg.GetIssuer())
	assert.Equal(t, []string{"newsshelf"}, cfg.GetAudience())
	assert.Equal(t, "admin@example.com", cfg.GetMainAdminEmail())
	assert.Equal(t, "user", cfg.GetContextKey())
	assert.Equal(t, "header:Authorization", cfg.GetTokenLookup())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
	assert.Equal(t, "rejected_route", cfg.GetRejectedRouteKey())
	assert.Equal(t, "/", cfg.GetRejectedRouteDefault())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "newsshelf.events.", cfg.Events.ChannelPrefix)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.OAuth.Enabled)
}

func TestParseOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_EXPIRY_MINUTES", "15")
	t.Setenv("JWT_AUDIENCE", "web, mobile ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.GetTokenExpiration())
	assert.Equal(t, []string{"web", "mobile"}, cfg.GetAudience())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "file::memory:", cfg.DB.DSN)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing signing key", env: map[string]string{"ADMIN_EMAIL": "admin@example.com"}},
		{name: "missing admin email", env: map[string]string{"JWT_SIGNING_KEY": signingKey}},
		{name: "short signing key", env: map[string]string{"JWT_SIGNING_KEY": "short", "ADMIN_EMAIL": "admin@example.com"}},
		{name: "bad admin email", env: map[string]string{"JWT_SIGNING_KEY": signingKey, "ADMIN_EMAIL": "admin"}},
		{name: "unsupported method", env: map[string]string{"JWT_SIGNING_KEY": signingKey, "ADMIN_EMAIL": "admin@example.com", "JWT_SIGNING_METHOD": "RS256"}},
		{name: "oauth without client", env: map[string]string{"JWT_SIGNING_KEY": signingKey, "ADMIN_EMAIL": "admin@example.com", "OAUTH_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SIGNING_KEY", "")
			t.Setenv("ADMIN_EMAIL", "")
			os.Unsetenv("JWT_SIGNING_KEY")
			os.Unsetenv("ADMIN_EMAIL")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Parse()
			require.Error(t, err)
		})
	}
}

func TestParseSanitizesExpiry(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_EXPIRY_MINUTES", "-5")

	cfg, err := config.Parse()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.GetTokenExpiration())
}

func TestLoadReadsDotEnv(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	os.Unsetenv("JWT_SIGNING_KEY")
	t.Setenv("ADMIN_EMAIL", "")
	os.Unsetenv("ADMIN_EMAIL")
	t.Cleanup(func() {
		os.Unsetenv("JWT_SIGNING_KEY")
		os.Unsetenv("ADMIN_EMAIL")
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SIGNING_KEY="+signingKey+"\nADMIN_EMAIL=root@example.com\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", cfg.GetMainAdminEmail())
}

func TestLoadWithoutDotEnv(t *testing.T) {
	setRequired(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
