package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseFile_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":              "www.example:9000",
		"database_dsn":                    "postgres://db",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": 180000000000,
		"single_session_login":            false,
		"allowed_origins":                 []string{"https://app.example"},
		"s3_bucket":                       "bucket",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{SingleSessionLogin: true, S3Region: "keep-me"}
		parseFile(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.False(t, cfg.SingleSessionLogin)
		assert.Equal(t, []string{"https://app.example"}, cfg.AllowedOrigins)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "keep-me", cfg.S3Region, "keys absent from the file keep their value")
	})

	t.Run("loads from yaml", func(t *testing.T) {
		path := filepath.Join(dir, "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("frontend_url: https://spa.example\npassword_reset_throttle: 30s\nsmtp_port: 2525\n"), 0o600))
		os.Args = []string{"testbin", "-c", path}

		cfg := &Config{}
		parseFile(cfg)

		assert.Equal(t, "https://spa.example", cfg.FrontendURL)
		assert.Equal(t, 30*time.Second, cfg.PasswordResetThrottle)
		assert.Equal(t, 2525, cfg.SMTPPort)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP:             "defaults:1234",
			DatabaseDSN:                  "dsn",
			SecretKey:                    "key",
			AccessTokenValidityDuration:  2 * time.Minute,
			RefreshTokenValidityDuration: 3 * time.Minute,
		}
		parseFile(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "dsn", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseFile(cfg) })
	})

	t.Run("invalid duration → panics", func(t *testing.T) {
		bad := writeTempJSON(t, dir, "dur.json", map[string]any{"password_reset_ttl": "soon"})
		os.Args = []string{"testbin", "-config", bad}

		require.Panics(t, func() { parseFile(&Config{}) })
	})
}

func Test_parseEnv(t *testing.T) {
	t.Setenv("SPA_AUTH_SECRET_KEY", "env-secret")
	t.Setenv("SPA_AUTH_REFRESH_TOKEN_TTL", "48h")
	t.Setenv("SPA_AUTH_SINGLE_SESSION_LOGIN", "false")
	t.Setenv("SPA_AUTH_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SPA_AUTH_METRICS_EXPORTER", "stdout")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "env-secret", cfg.SecretKey)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenValidityDuration)
	assert.False(t, cfg.SingleSessionLogin)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "stdout", cfg.MetricsExporter)
	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP, "unset variables keep defaults")
}

func Test_parseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("SPA_AUTH_SMTP_PORT", "not-a-number")

	require.Panics(t, func() { parseEnv(&Config{}) })
}
