// Package config loads taskdeck settings from defaults, an optional
// config.yaml, TASKDECK_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "taskdeck"

	// FileName is the config file looked up in the config directory.
	FileName = "config.yaml"

	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "TASKDECK"

	// DefaultAPIURL is where a local devserver listens.
	DefaultAPIURL = "http://127.0.0.1:8080/api"
)

// Config holds all client configuration.
type Config struct {
	Dir     string        `mapstructure:"config_dir" validate:"required"`
	APIURL  string        `mapstructure:"api_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
	Async   AsyncConfig   `mapstructure:"async"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// StorageConfig selects where the access token is persisted.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=file sqlite memory"`
	Dir     string `mapstructure:"dir"`
}

// TasksConfig tunes the task list.
type TasksConfig struct {
	PageSize             int  `mapstructure:"page_size" validate:"gte=1,lte=100"`
	RefetchAfterMutation bool `mapstructure:"refetch_after_mutation"`
}

// AsyncConfig selects the concurrency policy of every async operation.
type AsyncConfig struct {
	Policy string `mapstructure:"policy" validate:"required,oneof=last-write-wins reject cancel-previous"`
}

// StorageDir returns the directory the token store lives in.
func (c *Config) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return c.Dir
}

// DefaultDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("config_dir", DefaultDir())
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("timeout", "10s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", "")
	v.SetDefault("tasks.page_size", 10)
	v.SetDefault("tasks.refetch_after_mutation", false)
	v.SetDefault("async.policy", "last-write-wins")
}

// Load resolves the configuration held by v. Flags should already be bound.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(filepath.Join(v.GetString("config_dir"), FileName))
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// fileConfig is the on-disk shape written by WriteFile.
type fileConfig struct {
	APIURL  string `yaml:"api_url"`
	Timeout string `yaml:"timeout"`
	Log     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Storage struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir,omitempty"`
	} `yaml:"storage"`
	Tasks struct {
		PageSize             int  `yaml:"page_size"`
		RefetchAfterMutation bool `yaml:"refetch_after_mutation"`
	} `yaml:"tasks"`
	Async struct {
		Policy string `yaml:"policy"`
	} `yaml:"async"`
}

// WriteFile saves cfg as config.yaml in cfg.Dir. An existing file is only
// replaced when overwrite is set.
func WriteFile(cfg *Config, overwrite bool) (string, error) {
	path := filepath.Join(cfg.Dir, FileName)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}

	var fc fileConfig
	fc.APIURL = cfg.APIURL
	fc.Timeout = cfg.Timeout.String()
	fc.Log.Level = cfg.Log.Level
	fc.Log.Format = cfg.Log.Format
	fc.Storage.Backend = cfg.Storage.Backend
	fc.Storage.Dir = cfg.Storage.Dir
	fc.Tasks.PageSize = cfg.Tasks.PageSize
	fc.Tasks.RefetchAfterMutation = cfg.Tasks.RefetchAfterMutation
	fc.Async.Policy = cfg.Async.Policy

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
