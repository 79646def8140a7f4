package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
)

type Config struct {
	APIKey  string `yaml:"api_key"`
	Port    string `yaml:"port"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Backend string `yaml:"backend"`

	// HistorySize is the number of turns kept per conversation, 0 for
	// stateless single-turn chat.
	HistorySize       int           `yaml:"history_size"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	UpstreamTimeout   time.Duration `yaml:"upstream_timeout"`
	HTTP2PingInterval time.Duration `yaml:"http2_ping_interval"`

	SessionTTL           time.Duration `yaml:"session_ttl"`
	SessionSweepSchedule string        `yaml:"session_sweep_schedule"`

	CORSOrigins []string `yaml:"cors_origins"`

	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`

	// File is the YAML file this config was read from, if any.
	File string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Port:                 "5000",
		Model:                "gemini-pro",
		BaseURL:              "https://generativelanguage.googleapis.com/v1beta",
		Backend:              BackendREST,
		HistorySize:          5,
		MaxConcurrent:        100,
		UpstreamTimeout:      60 * time.Second,
		HTTP2PingInterval:    15 * time.Second,
		SessionTTL:           30 * time.Minute,
		SessionSweepSchedule: "@every 1m",
		CORSOrigins:          []string{"*"},
		LogLevel:             "info",
	}
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE,
// then applies environment overrides. Environment always wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("failed to load .env: %s", err)
	}
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
		cfg.File = path
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Port, "PORT")
	setString(&cfg.Model, "GEMINI_MODEL")
	setString(&cfg.BaseURL, "GEMINI_BASE_URL")
	setString(&cfg.Backend, "UPSTREAM_BACKEND")
	setInt(&cfg.HistorySize, "HISTORY_SIZE")
	setInt(&cfg.MaxConcurrent, "MAX_CONCURRENT")
	setDuration(&cfg.UpstreamTimeout, "UPSTREAM_TIMEOUT")
	setDuration(&cfg.HTTP2PingInterval, "HTTP2_PING_INTERVAL")
	setDuration(&cfg.SessionTTL, "SESSION_TTL")
	setString(&cfg.SessionSweepSchedule, "SESSION_SWEEP_SCHEDULE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}
	if val := os.Getenv("DEBUG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = b
		}
	}
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Warnf("ignoring %s=%q: %s", key, val, err)
		return
	}
	*dst = n
}

func setDuration(dst *time.Duration, key string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warnf("ignoring %s=%q: %s", key, val, err)
		return
	}
	*dst = d
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.Backend != BackendREST && c.Backend != BackendSDK {
		return fmt.Errorf("unknown upstream backend %q, want %q or %q", c.Backend, BackendREST, BackendSDK)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must not be negative, got %d", c.HistorySize)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be greater than 0, got %d", c.MaxConcurrent)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream_timeout must be greater than 0")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level, info when it can't be parsed.
func (c *Config) Level() log.Level {
	if c.Debug {
		return log.DebugLevel
	}
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
