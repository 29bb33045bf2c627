package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func validConfig() Config {
	config := defaults()
	config.CatalogAPIURL = "http://catalog.local"
	config.SubmissionAPIURL = "http://history.local"
	return config
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectedErr error
	}{
		{name: "Should accept the memory backend", mutate: func(c *Config) {}},
		{name: "Should require a database url for postgres", mutate: func(c *Config) { c.KVBackend = "postgres" }, expectedErr: ErrDatabaseURLRequired},
		{name: "Should require a redis url for redis", mutate: func(c *Config) { c.KVBackend = "redis" }, expectedErr: ErrRedisURLRequired},
		{name: "Should reject an unknown backend", mutate: func(c *Config) { c.KVBackend = "etcd" }, expectedErr: ErrInvalidKVBackend},
		{name: "Should require the catalog url", mutate: func(c *Config) { c.CatalogAPIURL = "" }, expectedErr: ErrCatalogURLRequired},
		{name: "Should require the submission url", mutate: func(c *Config) { c.SubmissionAPIURL = "" }, expectedErr: ErrSubmissionURLRequired},
		{name: "Should reject an unknown time zone", mutate: func(c *Config) { c.ReferenceTimeZone = "Mars/Olympus" }, expectedErr: ErrInvalidTimeZone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectedErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestFromFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: \"9090\"\nkv_backend: redis\nredis_url: redis://cache:6379/0\nhttp_timeout: 3s\nallow_origins:\n  - https://survey.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := FromFile(path, defaults(), &LogBuffer{})
	require.NoError(t, err)
	require.Equal(t, "9090", config.Port)
	require.Equal(t, "redis", config.KVBackend)
	require.Equal(t, "redis://cache:6379/0", config.RedisURL)
	require.Equal(t, 3*time.Second, config.HTTPTimeout)
	require.Equal(t, []string{"https://survey.example.com"}, config.AllowOrigins)
	require.Equal(t, "Asia/Bangkok", config.ReferenceTimeZone)

	_, err = FromFile(filepath.Join(dir, "missing.yaml"), defaults(), &LogBuffer{})
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("KV_BACKEND", "postgres")
	t.Setenv("SESSION_EXPIRATION", "2h")
	t.Setenv("KV_PRUNE_INTERVAL", "15m")
	t.Setenv("DEBUG", "not-a-bool")
	t.Setenv("ALLOW_ORIGINS", "https://a.example.com,https://b.example.com")

	base := defaults()
	base.Port = "9090"

	core, logs := observer.New(zap.InfoLevel)
	logBuffer := &LogBuffer{}
	config := FromEnv(base, logBuffer)
	logBuffer.FlushToZap(zap.New(core))

	require.Equal(t, "7070", config.Port)
	require.Equal(t, "postgres", config.KVBackend)
	require.Equal(t, 2*time.Hour, config.SessionExpiration)
	require.Equal(t, 15*time.Minute, config.KVPruneInterval)
	require.False(t, config.Debug)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, config.AllowOrigins)
	require.Equal(t, 1, logs.FilterMessage("Ignoring invalid boolean environment variable").Len())
}
