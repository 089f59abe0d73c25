package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Weather  WeatherConfig  `yaml:"weather"`
	Push     PushConfig     `yaml:"push"`
	Presence PresenceConfig `yaml:"presence"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig holds JWT configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// WeatherConfig holds weather lookup configuration
type WeatherConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PushConfig holds APNs push configuration
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
	BatchSize  int    `yaml:"batch_size"`
}

// PresenceConfig holds the deployment constants of the presence pipeline.
type PresenceConfig struct {
	// MovementToleranceDeg is the per-axis location delta (in degrees) below
	// which a move is treated as GPS jitter and triggers nothing.
	MovementToleranceDeg float64 `yaml:"movement_tolerance_deg"`
	// DebounceWindowMs suppresses open notifications whose timestamp advanced
	// by less than the window. Zero means any strictly newer open notifies.
	DebounceWindowMs int `yaml:"debounce_window_ms"`
	// LocationPollIntervalSeconds is the advisory client refresh interval.
	LocationPollIntervalSeconds int `yaml:"location_poll_interval_seconds"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	if c.Weather.TimeoutSeconds <= 0 {
		c.Weather.TimeoutSeconds = 10
	}
	if c.Push.BatchSize <= 0 {
		c.Push.BatchSize = 500
	}
	if c.Presence.MovementToleranceDeg <= 0 {
		c.Presence.MovementToleranceDeg = 0.0001
	}
	if c.Presence.LocationPollIntervalSeconds <= 0 {
		c.Presence.LocationPollIntervalSeconds = 600
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// WeatherTimeout returns the lookup timeout as a duration.
func (c *WeatherConfig) WeatherTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DebounceWindow returns the open-notification debounce as a duration.
func (c *PresenceConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowMs) * time.Millisecond
}
