package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Script    ScriptConfig    `mapstructure:"script"`
	Container ContainerConfig `mapstructure:"container"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// ScriptConfig holds configuration for the interpreter sandbox backend
type ScriptConfig struct {
	RuntimeBin        string `mapstructure:"runtime_bin"`
	ModuleCacheDir    string `mapstructure:"module_cache_dir"`
	TempRoot          string `mapstructure:"temp_root"`
	DefaultTimeoutSec int    `mapstructure:"default_timeout_sec"`
	MaxScriptBytes    int    `mapstructure:"max_script_bytes"`
	MaxPatternLength  int    `mapstructure:"max_pattern_length"`
}

// ContainerConfig holds configuration for the container sandbox backend
type ContainerConfig struct {
	Engine        string   `mapstructure:"engine"`
	TrustedImages []string `mapstructure:"trusted_images"`
	Network       string   `mapstructure:"network"`
	PullPolicy    string   `mapstructure:"pull_policy"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)

	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("script.runtime_bin", "deno")
	viper.SetDefault("script.module_cache_dir", "")
	viper.SetDefault("script.temp_root", "")
	viper.SetDefault("script.default_timeout_sec", 30)
	viper.SetDefault("script.max_script_bytes", 1024*1024)
	viper.SetDefault("script.max_pattern_length", 1000)

	viper.SetDefault("container.engine", "podman")
	viper.SetDefault("container.trusted_images", []string{})
	viper.SetDefault("container.network", "none")
	viper.SetDefault("container.pull_policy", "missing")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid. An empty trusted-image
// allowlist is valid configuration: it means every image is rejected.
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	if c.Script.RuntimeBin == "" {
		return fmt.Errorf("script.runtime_bin must not be empty")
	}

	if c.Script.DefaultTimeoutSec <= 0 {
		return fmt.Errorf("script.default_timeout_sec must be positive, got: %d", c.Script.DefaultTimeoutSec)
	}

	if c.Script.MaxScriptBytes <= 0 {
		return fmt.Errorf("script.max_script_bytes must be positive, got: %d", c.Script.MaxScriptBytes)
	}

	if c.Script.MaxPatternLength <= 0 {
		return fmt.Errorf("script.max_pattern_length must be positive, got: %d", c.Script.MaxPatternLength)
	}

	if c.Container.Engine != "podman" && c.Container.Engine != "docker" {
		return fmt.Errorf("unsupported container.engine: %s", c.Container.Engine)
	}

	if c.Container.Network != "none" && c.Container.Network != "bridge" {
		return fmt.Errorf("invalid container.network: %s, must be 'none' or 'bridge'", c.Container.Network)
	}

	switch c.Container.PullPolicy {
	case "never", "missing", "always":
	default:
		return fmt.Errorf("invalid container.pull_policy: %s, must be 'never', 'missing' or 'always'", c.Container.PullPolicy)
	}

	return nil
}
