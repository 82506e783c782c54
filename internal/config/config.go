// Package config loads flowrun settings from flags, environment and an optional
// .flowrun.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: FLOWRUN_REDIS_ADDR sets redis.addr.
const EnvPrefix = "FLOWRUN"

// FileName is the config file looked up in the working and home directories.
const FileName = ".flowrun"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the resolved configuration of a flowrun process.
type Config struct {
	LogLevel  string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=text json"`
	Addr      string `mapstructure:"addr" validate:"required,hostname_port"`
	Flows     string `mapstructure:"flows"`
	StepLimit int    `mapstructure:"step-limit" validate:"gte=0"`
	MaxInput  int    `mapstructure:"max-input" validate:"gte=0"`

	Store      string           `mapstructure:"store" validate:"oneof=memory file redis"`
	StorePath  string           `mapstructure:"store-path"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Delay      DelayConfig      `mapstructure:"delay"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	PII        PIIConfig        `mapstructure:"pii"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0,lte=15"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// DelayConfig paces the simulated dispatcher.
type DelayConfig struct {
	Message time.Duration `mapstructure:"message" validate:"gte=0"`
	API     time.Duration `mapstructure:"api" validate:"gte=0"`
}

type ArchiveConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,uri"`
}

type PIIConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// EncryptionConfig holds base64 AES-256 keys. The first fallback key that opens a
// session wins, so rotated keys can be listed oldest last.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key" validate:"omitempty,base64"`
	FallbackKeys []string `mapstructure:"fallback-keys" validate:"dive,base64"`
}

// flagKeys maps dashed CLI flags onto nested config keys.
var flagKeys = map[string]string{
	"redis-addr":     "redis.addr",
	"redis-password": "redis.password",
	"redis-db":       "redis.db",
	"redis-prefix":   "redis.prefix",
	"redis-ttl":      "redis.ttl",
	"message-delay":  "delay.message",
	"api-delay":      "delay.api",
	"archive-url":    "archive.url",
	"pii-pattern":    "pii.patterns",
}

// SetDefaults registers every key so environment overrides resolve even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("addr", "localhost:8080")
	v.SetDefault("flows", ".")
	v.SetDefault("step-limit", 0)
	v.SetDefault("max-input", 0)
	v.SetDefault("store", StoreMemory)
	v.SetDefault("store-path", ".flowrun/sessions")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "flowrun:session:")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("delay.message", 800*time.Millisecond)
	v.SetDefault("delay.api", 1500*time.Millisecond)
	v.SetDefault("archive.url", "")
	v.SetDefault("pii.patterns", []string{})
	v.SetDefault("encryption.key", "")
	v.SetDefault("encryption.fallback-keys", []string{})
}

// NewViper builds a viper instance layered as flags > env > file > defaults.
// cfgFile overrides the lookup of .flowrun.yaml; flags may be nil.
func NewViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := f.Name
			if nested, ok := flagKeys[f.Name]; ok {
				key = nested
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules spanning several keys.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store == StoreRedis && c.Redis.Addr == "" {
		return errors.New("invalid config: store=redis requires redis.addr")
	}
	if c.Store == StoreFile && c.StorePath == "" {
		return errors.New("invalid config: store=file requires store-path")
	}
	if len(c.Encryption.FallbackKeys) > 0 && c.Encryption.Key == "" {
		return errors.New("invalid config: encryption.fallback-keys requires encryption.key")
	}
	return nil
}
