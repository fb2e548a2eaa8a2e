package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		path    = writeFile(t, "semd.toml", `
capacity = 8
listen = "127.0.0.1:9000"
shutdown_timeout = "3s"
log_level = "debug"
`)
	)

	cfg, err := Load(viper.New(), path)
	require.NoError(err)

	assert.Equal(8, cfg.Capacity)
	assert.Equal("127.0.0.1:9000", cfg.Listen)
	assert.Equal(3*time.Second, cfg.ShutdownTimeout)
	assert.Equal("debug", cfg.LogLevel)
	assert.Equal(Default().BufferSize, cfg.BufferSize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(viper.New(), writeFile(t, "bad.toml", "capacity = 0\n"))
	assert.ErrorContains(t, err, "capacity must be positive")

	_, err = Load(viper.New(), writeFile(t, "bad.toml", "cipher_key = 256\n"))
	assert.ErrorContains(t, err, "cipher_key")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	for _, mutate := range []func(*Config){
		func(c *Config) { c.Capacity = -1 },
		func(c *Config) { c.BufferSize = 0 },
		func(c *Config) { c.CipherKey = -1 },
		func(c *Config) { c.MaxConnections = 0 },
	} {
		c := Default()
		mutate(c)
		assert.Error(t, c.Validate())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		path    = filepath.Join(t.TempDir(), "semd.toml")
		cfg     = Default()
	)

	cfg.Capacity = 16
	cfg.ShutdownTimeout = time.Minute
	require.NoError(cfg.Save(path))

	// never overwrites
	assert.Error(cfg.Save(path))

	loaded, err := Load(viper.New(), path)
	require.NoError(err)
	assert.Equal(cfg, loaded)
}
