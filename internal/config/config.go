package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	CORSOrigin  string `yaml:"cors_origin"`
	AdminToken  string `yaml:"admin_token"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Outbound queue depth for each push connection.
	StreamBuffer int `yaml:"stream_buffer"`

	CreateRateRPS   float64 `yaml:"create_rate_rps"`
	CreateRateBurst int     `yaml:"create_rate_burst"`
}

func defaults() Config {
	return Config{
		Port:            "8080",
		DatabaseURL:     "sqlite://board.db",
		CORSOrigin:      "*",
		LogLevel:        "info",
		LogFormat:       "json",
		StreamBuffer:    64,
		CreateRateRPS:   1.0 / 3.0, // 1 request every 3 seconds
		CreateRateBurst: 1,
	}
}

// Load builds a Config from defaults, the optional YAML file at path and
// finally the process environment. Environment variables always win.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("CORS_ORIGIN", &c.CORSOrigin)
	str("X_ADMIN_TOKEN", &c.AdminToken)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v, ok := lookup("STREAM_BUFFER"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STREAM_BUFFER: %w", err)
		}
		c.StreamBuffer = n
	}
	if v, ok := lookup("CREATE_RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CREATE_RATE_RPS: %w", err)
		}
		c.CreateRateRPS = f
	}
	if v, ok := lookup("CREATE_RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CREATE_RATE_BURST: %w", err)
		}
		c.CreateRateBurst = n
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch {
	case strings.HasPrefix(c.DatabaseURL, "sqlite://"),
		strings.HasPrefix(c.DatabaseURL, "postgres://"),
		strings.HasPrefix(c.DatabaseURL, "file://"):
	default:
		return errors.New("DATABASE_URL must start with 'sqlite://', 'postgres://' or 'file://'")
	}
	if c.StreamBuffer <= 0 {
		return errors.New("stream buffer must be positive")
	}
	if c.CreateRateRPS <= 0 || c.CreateRateBurst <= 0 {
		return errors.New("create rate limit must be positive")
	}
	return nil
}
