package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no stray config.yaml is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverBadger, cfg.Storage.Driver)
	assert.Equal(t, "data/badger", cfg.Storage.Path)
	assert.Equal(t, "student_marketplace_v1", cfg.Storage.Key)
	assert.Equal(t, int64(5<<20), cfg.Uploads.MaxBytes)
	assert.Equal(t, "Anonymous", cfg.Identity.PosterName)
	assert.Equal(t, "Student", cfg.Identity.CommenterName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30*time.Minute, cfg.Drafts.IdleTimeout)
	assert.Equal(t, 1000, cfg.Drafts.MaxOpen)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := inTempDir(t)

	yaml := `
http:
  addr: 127.0.0.1:9999
  shutdown_timeout: 2s
storage:
  driver: sqlite
  path: data/market.db
identity:
  poster_name: Juan
log:
  format: console
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	t.Setenv("MARKET_STORAGE_KEY", "tests_slot")
	t.Setenv("MARKET_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "data/market.db", cfg.Storage.Path)
	assert.Equal(t, "tests_slot", cfg.Storage.Key)
	assert.Equal(t, "Juan", cfg.Identity.PosterName)
	assert.Equal(t, "Student", cfg.Identity.CommenterName)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func commandFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("addr", "", "")
	flags.String("storage-driver", "", "")
	flags.String("storage-path", "", "")
	return flags
}

func TestLoadFlags(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "market.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: sqlite\n  path: from-file.db\nhttp:\n  addr: 127.0.0.1:7000\n"), 0644))
	t.Setenv("MARKET_HTTP_ADDR", "127.0.0.1:7001")

	t.Run("config file is read wherever the flag appears", func(t *testing.T) {
		flags := commandFlags()
		require.NoError(t, flags.Parse([]string{"backup.json", "--config", path}))
		assert.Equal(t, []string{"backup.json"}, flags.Args())

		cfg, err := LoadFlags(flags)
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
		assert.Equal(t, "from-file.db", cfg.Storage.Path)
		assert.Equal(t, "127.0.0.1:7001", cfg.HTTP.Addr)
	})

	t.Run("set flags beat file and environment", func(t *testing.T) {
		flags := commandFlags()
		require.NoError(t, flags.Parse([]string{"--config", path, "--storage-path", "override.db", "--addr", "127.0.0.1:7002"}))

		cfg, err := LoadFlags(flags)
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
		assert.Equal(t, "override.db", cfg.Storage.Path)
		assert.Equal(t, "127.0.0.1:7002", cfg.HTTP.Addr)
	})

	t.Run("unset flags leave defaults alone", func(t *testing.T) {
		cfg, err := LoadFlags(commandFlags())
		require.NoError(t, err)
		assert.Equal(t, DriverBadger, cfg.Storage.Driver)
		assert.Equal(t, "data/badger", cfg.Storage.Path)
	})

	t.Run("missing config file", func(t *testing.T) {
		flags := commandFlags()
		require.NoError(t, flags.Parse([]string{"--config", filepath.Join(dir, "nope.yaml")}))
		_, err := LoadFlags(flags)
		assert.Error(t, err)
	})
}

func TestLoadPicksUpConfigYAML(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage:\n  driver: memory\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
}

func TestLoadErrors(t *testing.T) {
	dir := inTempDir(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("MARKET_STORAGE_DRIVER", "postgres")
	_, err = Load("")
	assert.ErrorContains(t, err, "storage.driver")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			HTTP:    HTTPConfig{Addr: ":8080"},
			Storage: StorageConfig{Driver: DriverBadger, Path: "data", Key: "k"},
			Uploads: UploadsConfig{MaxBytes: 1},
			Log:     LogConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "memory needs no path", mutate: func(c *Config) { c.Storage.Driver = DriverMemory; c.Storage.Path = "" }, ok: true},
		{name: "badger needs a path", mutate: func(c *Config) { c.Storage.Path = "" }},
		{name: "empty key", mutate: func(c *Config) { c.Storage.Key = "" }},
		{name: "empty addr", mutate: func(c *Config) { c.HTTP.Addr = "" }},
		{name: "zero upload limit", mutate: func(c *Config) { c.Uploads.MaxBytes = 0 }},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
