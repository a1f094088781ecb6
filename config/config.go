package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Client   ClientConfig   `yaml:"client"`
}

type ServerConfig struct {
	Port    string `yaml:"port" validate:"required,numeric"`
	Mode    string `yaml:"mode" validate:"oneof=debug release test"`
	Storage string `yaml:"storage" validate:"oneof=postgres memory"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required_if=Driver postgres"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	Driver   string `yaml:"driver"`
}

func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type JWTConfig struct {
	Secret          string `yaml:"secret"`
	ExpirationHours int    `yaml:"expiration_hours" validate:"gt=0"`
}

func (c JWTConfig) ExpirationDuration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// ClientConfig tunes the command layer used by Go front ends.
type ClientConfig struct {
	HistoryLimit int           `yaml:"history_limit" validate:"gt=0"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in that order of precedence.
func Load() *Config {
	cfg, err := LoadFrom(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadFrom is Load with an explicit file path. An empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "8080",
			Mode:    "release",
			Storage: "postgres",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "tracker",
			Name:    "tracker",
			SSLMode: "disable",
			Driver:  "postgres",
		},
		JWT: JWTConfig{
			ExpirationHours: 24,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "tracker",
		},
		Client: ClientConfig{
			HistoryLimit: 50,
			Timeout:      15 * time.Second,
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Mode, "GIN_MODE")
	setString(&cfg.Server.Storage, "STORAGE")

	setString(&cfg.Database.Host, "DATABASE_HOST")
	setInt(&cfg.Database.Port, "DATABASE_PORT")
	setString(&cfg.Database.User, "DATABASE_USER")
	setString(&cfg.Database.Password, "DATABASE_PASSWORD")
	setString(&cfg.Database.Name, "DATABASE_NAME")
	setString(&cfg.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setInt(&cfg.JWT.ExpirationHours, "JWT_EXPIRATION_HOURS")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	setInt(&cfg.Client.HistoryLimit, "HISTORY_LIMIT")
	if v := os.Getenv("CLIENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Client.Timeout = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
