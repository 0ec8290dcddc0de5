// Copyright 2024 Fireplexity Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads service settings and resolves the chat provider
// configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// ErrNoConfigFile is returned by WatchConfig when there is no file to watch
	ErrNoConfigFile = errors.New("no configuration file found")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the service settings. Chat provider credentials are not
// part of it; they are resolved per request through a Lookup.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Firecrawl FirecrawlConfig `mapstructure:"firecrawl"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FirecrawlConfig contains search API settings
type FirecrawlConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
}

// ChatConfig contains chat completion request settings
type ChatConfig struct {
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads settings from an optional file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	found, err := setConfigFile(v, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("FIREPLEXITY")

	if found {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev")
	v.SetDefault("firecrawl.timeout", 30*time.Second)
	v.SetDefault("firecrawl.default_limit", 6)
	v.SetDefault("firecrawl.max_limit", 10)

	v.SetDefault("chat.max_tokens", 1500)
	v.SetDefault("chat.temperature", 0.3)
	v.SetDefault("chat.timeout", 60*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile points viper at a config file. A missing file is only an
// error when the path was given explicitly.
func setConfigFile(v *viper.Viper, configPath string) (bool, error) {
	path, err := findConfigFile(configPath)
	if err != nil || path == "" {
		return false, err
	}
	v.SetConfigFile(path)
	return true, nil
}

func findConfigFile(configPath string) (string, error) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		return envPath, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("config file does not exist: %s", configPath)
		}
		return configPath, nil
	}

	for _, path := range []string{"./configs/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", nil
}

func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"PORT":              "server.port",
		"FIRECRAWL_API_URL": "firecrawl.base_url",
		"LOG_LEVEL":         "logging.level",
		"LOG_FORMAT":        "logging.format",
		"LOG_OUTPUT":        "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if config.Server.ShutdownTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown_timeout must be greater than 0",
		})
	}

	if u, err := url.Parse(config.Firecrawl.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "firecrawl.base_url",
			Message: "base_url must be an absolute http(s) URL. Set via config file or FIRECRAWL_API_URL environment variable",
		})
	}

	if config.Firecrawl.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "firecrawl.timeout",
			Message: "timeout must be greater than 0",
		})
	}

	if config.Firecrawl.MaxLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "firecrawl.max_limit",
			Message: "max_limit must be greater than 0",
		})
	}

	if config.Firecrawl.DefaultLimit <= 0 || config.Firecrawl.DefaultLimit > config.Firecrawl.MaxLimit {
		errs = append(errs, ValidationError{
			Field:   "firecrawl.default_limit",
			Message: "default_limit must be between 1 and max_limit",
		})
	}

	if config.Chat.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.Chat.Temperature < 0 || config.Chat.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.Chat.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.timeout",
			Message: "timeout must be greater than 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if strings.TrimSpace(config.Logging.Output) == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: "log output is required (stdout, stderr or a file path)",
		})
	}

	if len(errs) > 0 {
		messages := make([]string, 0, len(errs))
		for _, err := range errs {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("%w:\n%s", ErrInvalidConfigValue, strings.Join(messages, "\n"))
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig reloads the configuration file on change and hands the new
// settings to callback. Reloads that fail validation are logged and dropped.
func WatchConfig(configPath string, logger *zap.Logger, callback func(*Config)) error {
	path, err := findConfigFile(configPath)
	if err != nil {
		return err
	}
	if path == "" {
		return ErrNoConfigFile
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("Config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))

		config, err := Load(path)
		if err != nil {
			logger.Warn("Failed to reload config", zap.Error(err))
			return
		}

		callback(config)
	})
	v.WatchConfig()

	return nil
}
