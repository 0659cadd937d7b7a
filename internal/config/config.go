// Package config loads service configuration from an optional YAML file and
// DOCNUM_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"docnum/internal/core/numerator"
	"docnum/internal/domain/numbering"
	"docnum/pkg/logger"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverEtcd     = "etcd"
)

// Config is the full docnum configuration as returned by Load.
type Config struct {
	Server    ServerConfig              `mapstructure:"server" validate:"required"`
	Logging   logger.Config             `mapstructure:"logging"`
	Store     StoreConfig               `mapstructure:"store" validate:"required"`
	Allocator AllocatorConfig           `mapstructure:"allocator" validate:"required"`
	Formats   map[string]FormatOverride `mapstructure:"formats"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig selects the counter store driver and its connection settings.
// Only the fields of the selected driver are used.
type StoreConfig struct {
	Driver           string        `mapstructure:"driver" validate:"required,oneof=memory sqlite postgres etcd"`
	SQLitePath       string        `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	PostgresDSN      string        `mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
	PostgresMaxConns int32         `mapstructure:"postgres_max_conns" validate:"gte=1"`
	EtcdEndpoints    []string      `mapstructure:"etcd_endpoints"`
	EtcdPrefix       string        `mapstructure:"etcd_prefix"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
}

// AllocatorConfig maps onto numbering.Options.
type AllocatorConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxBatch       int           `mapstructure:"max_batch" validate:"gte=1"`
}

// FormatOverride replaces parts of a document type's default display format.
// Unset fields keep the default.
type FormatOverride struct {
	Prefix      string `mapstructure:"prefix"`
	IncludeYear *bool  `mapstructure:"include_year"`
	PadWidth    int    `mapstructure:"pad_width" validate:"gte=0,lte=18"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "docnum.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.postgres_max_conns", 10)
	v.SetDefault("store.etcd_endpoints", []string{})
	v.SetDefault("store.etcd_prefix", "/docnum/sequences")
	v.SetDefault("store.dial_timeout", 5*time.Second)

	d := numbering.DefaultOptions()
	v.SetDefault("allocator.max_attempts", d.MaxAttempts)
	v.SetDefault("allocator.initial_backoff", d.InitialBackoff)
	v.SetDefault("allocator.max_backoff", d.MaxBackoff)
	v.SetDefault("allocator.timeout", d.Timeout)
	v.SetDefault("allocator.max_batch", d.MaxBatch)
}

// Load reads configuration. When path is empty, config.yaml is searched in
// ".", "./config" and "/etc/docnum"; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/docnum")
	}

	// Set up environment variables support
	v.SetEnvPrefix("DOCNUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and that every format key names a known document type.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Driver == DriverEtcd && len(c.Store.EtcdEndpoints) == 0 {
		return errors.New("invalid config: store.etcd_endpoints is required for the etcd driver")
	}
	for name, f := range c.Formats {
		if _, err := numerator.ParseDocumentType(name); err != nil {
			return fmt.Errorf("invalid config: formats: %w", err)
		}
		if err := validate.Struct(f); err != nil {
			return fmt.Errorf("invalid config: formats.%s: %w", name, err)
		}
	}
	return nil
}

// FormatConfigs merges overrides onto each document type's default format.
func (c Config) FormatConfigs() map[numerator.DocumentType]numerator.FormatConfig {
	out := make(map[numerator.DocumentType]numerator.FormatConfig, len(c.Formats))
	for name, o := range c.Formats {
		t, err := numerator.ParseDocumentType(name)
		if err != nil {
			continue
		}
		f := numerator.DefaultFormat(t)
		if o.Prefix != "" {
			f.Prefix = o.Prefix
		}
		if o.IncludeYear != nil {
			f.IncludeYear = *o.IncludeYear
		}
		if o.PadWidth > 0 {
			f.PadWidth = o.PadWidth
		}
		out[t] = f
	}
	return out
}

// NumberingOptions builds service options from the allocator and format sections.
func (c Config) NumberingOptions() numbering.Options {
	opts := numbering.DefaultOptions()
	opts.MaxAttempts = c.Allocator.MaxAttempts
	opts.InitialBackoff = c.Allocator.InitialBackoff
	opts.MaxBackoff = c.Allocator.MaxBackoff
	opts.Timeout = c.Allocator.Timeout
	opts.MaxBatch = c.Allocator.MaxBatch
	opts.Formats = c.FormatConfigs()
	return opts
}
