package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/xorcipher"
)

const DefaultName = "semd"

type Config struct {
	// Fixed for the lifetime of the process.
	Capacity   int `toml:"capacity"`
	BufferSize int `toml:"buffer_size"`
	CipherKey  int `toml:"cipher_key"`

	// Transport
	Listen          string        `toml:"listen"`
	MaxConnections  int           `toml:"max_connections"`
	MetricsPath     string        `toml:"metrics_path"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	// Storage and logging
	Database  string `toml:"database"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Default returns the configuration used for every key missing from the file.
func Default() *Config {
	return &Config{
		Capacity:        semaphore.DefaultCapacity,
		BufferSize:      buffer.DefaultSize,
		CipherKey:       int(xorcipher.DefaultKey),
		Listen:          ":8080",
		MaxConnections:  256,
		MetricsPath:     "/metrics",
		ShutdownTimeout: 10 * time.Second,
		Database:        "semd.db",
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("buffer_size", d.BufferSize)
	v.SetDefault("cipher_key", d.CipherKey)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("max_connections", d.MaxConnections)
	v.SetDefault("metrics_path", d.MetricsPath)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("database", d.Database)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Load reads the configuration from path, or from semd.toml in the working
// directory if path is empty. A missing semd.toml is not an error; the
// defaults are used instead. Keys may be overridden with SEMD_* variables.
func Load(v *viper.Viper, path string) (*Config, error) {
	if len(path) != 0 {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	v.SetEnvPrefix(DefaultName)
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if len(path) != 0 || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	}

	cfg := &Config{}
	err = v.Unmarshal(
		cfg,
		func(config *mapstructure.DecoderConfig) {
			config.TagName = "toml"
			config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeHookFunc(time.RFC3339),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	case c.BufferSize <= 0:
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	case c.CipherKey < 0 || c.CipherKey > 0xff:
		return fmt.Errorf("cipher_key must fit into a byte, got %d", c.CipherKey)
	case c.MaxConnections <= 0:
		return fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections)
	}
	return nil
}

// Save writes the configuration as TOML to path.
func (c *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	err = toml.NewEncoder(f).Encode(c)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
