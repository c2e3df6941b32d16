// Package config loads the YAML configuration shared by the terminal client,
// the local API server and the tools.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendService = "service"
	BackendLLM     = "llm"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Search  SearchConfig  `yaml:"search"`
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type SearchConfig struct {
	Backend      string        `yaml:"backend"` // service or llm
	ServiceURL   string        `yaml:"service_url"`
	PerPage      int           `yaml:"per_page"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	RateBurst    int           `yaml:"rate_burst"`
	MaxRetries   int           `yaml:"max_retries"` // -1 disables
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Referer string `yaml:"referer"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"` // sqlite, postgres, redis, memory
	Path          string `yaml:"path"`
	DatabaseURL   string `yaml:"database_url"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Load reads path (or $BILLFINDER_CONFIG, or ./config.yaml). A missing file is
// not an error: defaults and environment overrides still apply. ${VAR}
// references inside the file are expanded after .env has been loaded.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("BILLFINDER_CONFIG")
	}
	if path == "" {
		path = "./config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Log.Level, "BILLFINDER_LOG_LEVEL")
	setString(&cfg.Log.Format, "BILLFINDER_LOG_FORMAT")
	setString(&cfg.Search.Backend, "BILLFINDER_BACKEND")
	setString(&cfg.Search.ServiceURL, "BILLFINDER_SERVICE_URL")
	setString(&cfg.LLM.BaseURL, "BILLFINDER_LLM_URL")
	setString(&cfg.LLM.Model, "BILLFINDER_LLM_MODEL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.Storage.Driver, "BILLFINDER_STORAGE")
	setString(&cfg.Storage.Path, "BILLFINDER_DB")
	setString(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Storage.RedisAddr, "BILLFINDER_REDIS_ADDR")
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")

	if v := os.Getenv("BILLFINDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
	if v := os.Getenv("BILLFINDER_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.PerPage = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Search.Backend == "" {
		cfg.Search.Backend = BackendService
	}
	if cfg.Search.ServiceURL == "" {
		cfg.Search.ServiceURL = "http://localhost:5000"
	}
	if cfg.Search.PerPage == 0 {
		cfg.Search.PerPage = 5
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 30 * time.Second
	}
	if cfg.Search.RateLimitRPS == 0 {
		cfg.Search.RateLimitRPS = 2
	}
	if cfg.Search.RateBurst == 0 {
		cfg.Search.RateBurst = 4
	}
	if cfg.Search.MaxRetries == 0 {
		cfg.Search.MaxRetries = 2
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "openai/gpt-4o-mini"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./billfinder.db"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
}

// Validate checks enum fields and ranges.
func (c *Config) Validate() error {
	switch c.Search.Backend {
	case BackendService, BackendLLM:
	default:
		return fmt.Errorf("invalid search.backend %q, expected service or llm", c.Search.Backend)
	}
	if c.Search.Backend == BackendLLM && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required when search.backend is llm")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "redis", "memory":
	default:
		return fmt.Errorf("invalid storage.driver %q", c.Storage.Driver)
	}
	if c.Search.PerPage < 1 || c.Search.PerPage > 50 {
		return fmt.Errorf("search.per_page must be between 1 and 50, got %d", c.Search.PerPage)
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("search.timeout must be positive")
	}
	return nil
}
