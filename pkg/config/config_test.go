package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port       int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	Host       string        `env:"TEST_CFG_HOST" envDefault:"localhost"`
	EditWindow time.Duration `env:"TEST_CFG_EDIT_WINDOW" envDefault:"168h"`
	Brokers    []string      `env:"TEST_CFG_BROKERS" envSeparator:","`
	Enabled    bool          `env:"TEST_CFG_ENABLED" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 7*24*time.Hour, cfg.EditWindow)
	assert.Empty(t, cfg.Brokers)
	assert.False(t, cfg.Enabled)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_EDIT_WINDOW", "48h")
	t.Setenv("TEST_CFG_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("TEST_CFG_ENABLED", "true")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 48*time.Hour, cfg.EditWindow)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.True(t, cfg.Enabled)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_DotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_HOST=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_CFG_HOST") })

	var cfg testConfig
	require.NoError(t, Load(&cfg, path))
	assert.Equal(t, "from-dotenv", cfg.Host)
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_HOST=from-dotenv\n"), 0o600))
	t.Setenv("TEST_CFG_HOST", "from-env")

	var cfg testConfig
	require.NoError(t, Load(&cfg, path))
	assert.Equal(t, "from-env", cfg.Host)
}

func TestLoad_MissingDotenvIsIgnored(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg, filepath.Join(t.TempDir(), "absent.env")))
}
