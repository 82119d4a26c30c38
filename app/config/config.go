package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all configuration for the marketplace.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Drafts   DraftsConfig   `mapstructure:"drafts"`
	Identity IdentityConfig `mapstructure:"identity"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Key    string `mapstructure:"key"`
}

type UploadsConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// DraftsConfig bounds the listing forms held open in memory. Zero values
// fall back to the composer defaults.
type DraftsConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MaxOpen     int           `mapstructure:"max_open"`
}

type IdentityConfig struct {
	PosterName    string `mapstructure:"poster_name"`
	PosterAvatar  string `mapstructure:"poster_avatar"`
	CommenterName string `mapstructure:"commenter_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.shutdown_timeout", "5s")
	v.SetDefault("storage.driver", DriverBadger)
	v.SetDefault("storage.path", "data/badger")
	v.SetDefault("storage.key", "student_marketplace_v1")
	v.SetDefault("uploads.max_bytes", 5<<20)
	v.SetDefault("drafts.idle_timeout", "30m")
	v.SetDefault("drafts.max_open", 1000)
	v.SetDefault("identity.poster_name", "Anonymous")
	v.SetDefault("identity.poster_avatar", "")
	v.SetDefault("identity.commenter_name", "Student")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// flagKeys maps command-line flags to the settings they override.
var flagKeys = map[string]string{
	"addr":           "http.addr",
	"storage-driver": "storage.driver",
	"storage-path":   "storage.path",
	"log-level":      "log.level",
}

// Load reads configuration from defaults, an optional YAML file and MARKET_*
// environment variables, in increasing order of precedence. An empty path
// looks for config.yaml in the working directory and tolerates its absence.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadFlags is Load driven by a command's flags. --config names the file, and
// any override flag that was set on the command line beats file and
// environment.
func LoadFlags(flags *pflag.FlagSet) (*Config, error) {
	var path string
	if f := flags.Lookup("config"); f != nil {
		path = f.Value.String()
	}
	return load(path, flags)
}

func load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding --%s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverBadger, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be one of %s, %s, %s; got %q", DriverBadger, DriverSQLite, DriverMemory, c.Storage.Driver)
	}
	if c.Storage.Driver != DriverMemory && c.Storage.Path == "" {
		return errors.New("storage.path is required for on-disk drivers")
	}
	if c.Storage.Key == "" {
		return errors.New("storage.key cannot be empty")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr cannot be empty")
	}
	if c.Uploads.MaxBytes <= 0 {
		return errors.New("uploads.max_bytes must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console; got %q", c.Log.Format)
	}
	return nil
}
