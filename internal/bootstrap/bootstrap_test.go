package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm-multistatement/internal/config"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte("DB_DRIVER=sqlite\nHTTP_PORT=9090\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "9090", cfg.App.HTTPPort)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())
	t.Setenv("DB_DRIVER", "mysql")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), `unsupported DB_DRIVER "mysql"`)
}

func TestNewLogger(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	cfg := &config.Config{Logger: config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		OutputPath:  out,
		ServiceName: "gorm-multistatement",
	}}

	l, err := NewLogger(cfg)
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, SyncLogger(l))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"service":"gorm-multistatement"`)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "")
	assert.Equal(t, "development", Environment())

	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "production", Environment())
}
