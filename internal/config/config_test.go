package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "admin", cfg.DB.User)
	assert.Equal(t, "testing", cfg.DB.Name)
	assert.Equal(t, 1, cfg.DB.MaxOpenConns)
	assert.Equal(t, "8080", cfg.App.HTTPPort)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Logger.SQLParams)
	assert.InDelta(t, 3.0, cfg.Redis.TimeoutSeconds, 0.0001)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_SQLParams(t *testing.T) {
	t.Run("ProductionDefault", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")

		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.False(t, cfg.Logger.SQLParams)
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Override", func(t *testing.T) {
		t.Setenv("LOG_SQL_PARAMS", "false")

		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.False(t, cfg.Logger.SQLParams)
	})
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/probe.db")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/probe.db", cfg.DB.SQLitePath)
	assert.Equal(t, "9090", cfg.App.HTTPPort)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.InDelta(t, 2.5, cfg.RateLimit.RequestsPerSecond, 0.0001)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DB: DatabaseConfig{
				Driver: DriverPostgres, Host: "localhost", Port: "5432", Name: "testing", MaxOpenConns: 1,
			},
			App: AppConfig{HTTPPort: "8080"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid postgres", mutate: func(c *Config) {}},
		{
			name:   "valid sqlite",
			mutate: func(c *Config) { c.DB.Driver = DriverSQLite; c.DB.SQLitePath = ":memory:" },
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.DB.Driver = "mysql" },
			wantErr: `unsupported DB_DRIVER "mysql"`,
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.DB.Driver = DriverSQLite },
			wantErr: "DB_SQLITE_PATH",
		},
		{
			name:    "zero connections",
			mutate:  func(c *Config) { c.DB.MaxOpenConns = 0 },
			wantErr: "DB_MAX_OPEN_CONNS",
		},
		{
			name:    "rate limit without rps",
			mutate:  func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true, BurstCapacity: 1} },
			wantErr: "RATE_LIMIT_RPS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "admin", Password: "secret", Name: "testing", SSLMode: "disable"}
	assert.Equal(t, "host=db user=admin password=secret dbname=testing port=5432 sslmode=disable", c.DSN())
}
