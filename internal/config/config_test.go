package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "v.db"))

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30, cfg.DefaultCapacity)
	assert.Equal(t, 10000, cfg.ExportLimit)
	assert.Equal(t, 30*time.Second, cfg.SettingsCacheTTL)
	assert.Equal(t, time.Hour, cfg.AccessTTL())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ReadsEnvFileWithoutOverridingProcessEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	content := "JWT_SECRET=from-file\nDB_DRIVER=mysql\nDB_USER=visits\nDB_NAME=visits\nDEFAULT_CAPACITY=45\nAPP_ENV=production\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	// godotenv sets process variables; register cleanup for each key.
	for _, k := range []string{"JWT_SECRET", "DB_DRIVER", "DB_USER", "DB_NAME", "DEFAULT_CAPACITY", "APP_ENV"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("DB_USER", "override")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "override", cfg.DBUser)
	assert.Equal(t, 45, cfg.DefaultCapacity)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "visits", cfg.MySQL().Name)
	assert.Equal(t, "3306", cfg.MySQL().Port)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	t.Setenv("DB_DRIVER", "sqlite")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{DBDriver: "sqlite", SQLitePath: "x.db", AccessTTLMin: 10, ExportLimit: 10}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "postgres" }},
		{"mysql needs user", func(c *Config) { c.DBDriver = "mysql"; c.DBName = "v" }},
		{"sqlite needs path", func(c *Config) { c.SQLitePath = " " }},
		{"negative capacity", func(c *Config) { c.DefaultCapacity = -1 }},
		{"zero ttl", func(c *Config) { c.AccessTTLMin = 0 }},
		{"zero export limit", func(c *Config) { c.ExportLimit = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "visits:rl", cfg.Prefix)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "bogus")

	cfg := LoadCacheConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 5*time.Second, cfg.TTL)
	assert.Equal(t, 1<<20, cfg.MaxBodyBytes)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	opts := RedisOptions()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Nil(t, opts.TLSConfig)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "true")
	opts = RedisOptions()
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.NotNil(t, opts.TLSConfig)
}

func TestNewRedisClient_DisabledOrUnreachable(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	assert.Nil(t, NewRedisClient(context.Background()))

	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")
	assert.Nil(t, NewRedisClient(context.Background()))
}
