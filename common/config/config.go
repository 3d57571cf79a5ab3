// Package config loads client configuration.
//
// Sources, highest priority first:
//  1. explicit path (--config);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only.
//
// Environment variables always overlay values read from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	API   APIConfig   `yaml:"api"`
	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
}

// APIConfig describes the remote booking API and the client talking to it.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"     env:"API_BASE_URL"     env-default:"http://localhost:8080/api/v1"`
	UserAgent   string        `yaml:"user_agent"   env:"API_USER_AGENT"   env-default:"staybook/1.0"`
	Timeout     time.Duration `yaml:"timeout"      env:"API_TIMEOUT"      env-default:"10s"`
	RefreshPath string        `yaml:"refresh_path" env:"API_REFRESH_PATH" env-default:"/auth/refresh"`
	LoginRoute  string        `yaml:"login_route"  env:"API_LOGIN_ROUTE"  env-default:"/login"`

	// Concurrent 401s share one refresh call unless this is set.
	DisableSingleFlight bool `yaml:"disable_single_flight" env:"API_DISABLE_SINGLE_FLIGHT"`
}

// StoreConfig selects and configures the token store backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"        env:"STORE_BACKEND"        env-default:"file"`
	FilePath      string `yaml:"file_path"      env:"STORE_FILE_PATH"      env-default:".staybook/tokens.json"`
	RedisAddr     string `yaml:"redis_addr"     env:"STORE_REDIS_ADDR"     env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"STORE_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"       env:"STORE_REDIS_DB"       env-default:"0"`
	RedisPrefix   string `yaml:"redis_prefix"   env:"STORE_REDIS_PREFIX"   env-default:"staybook:"`
}

// LogConfig controls the logrus setup.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// Validate rejects configurations the client cannot start with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.Store.FilePath == "" {
			return fmt.Errorf("store.file_path is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// MustLoad panics if the configuration cannot be loaded.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		// ReadConfig overlays env after the file.
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return validated(&cfg)
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	return validated(&cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
