// Package config loads toolkit configuration from apitoolkit.yml and the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the toolkit configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ProjectionConfig tunes projection and filtering behavior.
type ProjectionConfig struct {
	// FixedFields are always appended to every selection.
	FixedFields []string `mapstructure:"fixed_fields"`

	// ExcludedFilterColumns are removed from the searchable-column set.
	// Entries are bare column names or "type.column" pairs.
	ExcludedFilterColumns []string `mapstructure:"excluded_filter_columns"`

	// DefaultLimit applies when the client sends no limit. Zero means
	// unlimited.
	DefaultLimit int `mapstructure:"default_limit"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Addr returns the server's listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads apitoolkit.yml from the working directory, overlaying APITK_
// environment variables (APITK_SERVER_PORT, APITK_DATABASE_URL, ...). A
// missing config file falls back to defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("projection.default_limit", 0)
	v.SetDefault("log.level", "info")

	v.SetConfigName("apitoolkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("APITK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// DatabaseURL returns the database URL from the environment or the config
// file, in that order.
func DatabaseURL(cfg *Config) string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return cfg.Database.URL
}
