package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 32 bytes, base64 encoded
const testSecret = "dGhpcy1pcy1hLXRlc3Qtc2lnbmluZy1zZWNyZXQtMzI="

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FORUM_SESSION_SIGNING_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:3010", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Session.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "forum_session", cfg.Session.CookieName)
	assert.Equal(t, 50, cfg.Chat.HistoryDefaultLimit)
	assert.Equal(t, 200, cfg.Chat.HistoryMaxLimit)
	assert.True(t, cfg.Chat.PersistRealtime)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.SigningKey, "expected signing key to be decoded")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  addr: ":9000"
  allowed_origins:
    - "https://forum.example.com"
session:
  backend: redis
  ttl: 2h
  signing_secret: "` + testSecret + `"
redis:
  address: "redis:6379"
chat:
  history_default_limit: 25
  persist_realtime: false
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("FORUM_SERVER_ADDR", ":9100")
	t.Setenv("FORUM_CHAT_HISTORY_MAX_LIMIT", "100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr, "expected env to override file")
	assert.Equal(t, []string{"https://forum.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, 25, cfg.Chat.HistoryDefaultLimit)
	assert.Equal(t, 100, cfg.Chat.HistoryMaxLimit)
	assert.False(t, cfg.Chat.PersistRealtime)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("FORUM_SESSION_SIGNING_SECRET", testSecret)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Addr: "localhost:3010"},
			Database: DatabaseConfig{DSN: "postgres://localhost/forum"},
			Session:  SessionConfig{Backend: "postgres", TTL: time.Hour, SigningSecret: testSecret},
			Redis:    RedisConfig{Address: "localhost:6379"},
			Chat:     ChatConfig{HistoryDefaultLimit: 50, HistoryMaxLimit: 200},
		}
	}

	tcases := []struct {
		name   string
		modify func(c *Config)
		err    bool
	}{
		{name: "valid config", modify: func(c *Config) {}},
		{name: "empty address", modify: func(c *Config) { c.Server.Addr = "" }, err: true},
		{name: "empty DSN", modify: func(c *Config) { c.Database.DSN = "" }, err: true},
		{name: "empty signing key", modify: func(c *Config) { c.Session.SigningSecret = "" }, err: true},
		{name: "short signing key", modify: func(c *Config) { c.Session.SigningSecret = "c29tZV9zZWNyZXQ=" }, err: true},
		{name: "unknown backend", modify: func(c *Config) { c.Session.Backend = "cookie" }, err: true},
		{name: "redis without address", modify: func(c *Config) { c.Session.Backend = "redis"; c.Redis.Address = "" }, err: true},
		{name: "memory backend", modify: func(c *Config) { c.Session.Backend = "memory" }},
		{name: "zero ttl", modify: func(c *Config) { c.Session.TTL = 0 }, err: true},
		{name: "default above max", modify: func(c *Config) { c.Chat.HistoryDefaultLimit = 500 }, err: true},
		{name: "negative rate limit", modify: func(c *Config) { c.Chat.RateLimitPerSecond = -1 }, err: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)
			assert.NotEmpty(t, cfg.SigningKey, "expected signing key to be decoded and not empty")
		})
	}
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
