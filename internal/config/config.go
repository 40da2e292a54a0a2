package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Limits   LimitsConfig   `toml:"limits"`
	Instance InstanceConfig `toml:"instance"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	// AdminPasswordHash is a bcrypt hash; empty disables the admin console.
	AdminPasswordHash string `toml:"admin_password_hash"`
	JWTSecret         string `toml:"jwt_secret"`
	TokenExpiryMin    int    `toml:"token_expiry_min"`
}

type LimitsConfig struct {
	// RateLimit requests per RateWindowSec per IP on write endpoints.
	RateLimit     int `toml:"rate_limit"`
	RateWindowSec int `toml:"rate_window_sec"`
}

type InstanceConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Path: "data/clawnet.db",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
		Limits: LimitsConfig{
			RateLimit:     60,
			RateWindowSec: 60,
		},
		Instance: InstanceConfig{
			ID:   "local",
			Name: "clawnet-local",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
