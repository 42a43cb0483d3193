package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

type Wiki struct {
	BaseURL       string  `yaml:"base_url"`
	UserAgent     string  `yaml:"user_agent"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	MaxRPS        float64 `yaml:"max_rps"`
	MaxRetries    int     `yaml:"max_retries"`
	BaseBackoffMS int     `yaml:"base_backoff_ms"`
}

// Timeout is the per-request HTTP timeout.
func (w Wiki) Timeout() time.Duration { return time.Duration(w.TimeoutSec) * time.Second }

// BaseBackoff is the delay before the first retry.
func (w Wiki) BaseBackoff() time.Duration { return time.Duration(w.BaseBackoffMS) * time.Millisecond }

type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Config struct {
	Server Server `yaml:"server"`
	Wiki   Wiki   `yaml:"wiki"`
	Log    Log    `yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 30},
		Wiki: Wiki{
			BaseURL:       "https://prices.runescape.wiki/api/v1/osrs",
			UserAgent:     "OSRS-Merch-Bot/1.3 (contact: you@example.com)",
			TimeoutSec:    20,
			MaxRPS:        4,
			MaxRetries:    4,
			BaseBackoffMS: 750,
		},
		Log: Log{Level: "info", Format: "text", Output: "stderr"},
	}
}

// Load reads YAML config from path. If path is empty, config.yaml in the
// working directory is used when present; otherwise defaults apply. A .env
// file, if any, is loaded into the environment first, and environment
// variables then override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Server.RequestTimeoutSec = x
	}

	if v := os.Getenv("WIKI_BASE_URL"); v != "" {
		cfg.Wiki.BaseURL = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.Wiki.UserAgent = v
	}
	if x, ok := envInt("WIKI_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Wiki.TimeoutSec = x
	}
	if v := os.Getenv("WIKI_MAX_RPS"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil && x > 0 {
			cfg.Wiki.MaxRPS = x
		}
	}
	if x, ok := envInt("WIKI_MAX_RETRIES"); ok && x >= 0 {
		cfg.Wiki.MaxRetries = x
	}
	if x, ok := envInt("WIKI_BASE_BACKOFF_MS"); ok && x >= 0 {
		cfg.Wiki.BaseBackoffMS = x
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		cfg.Log.Output = v
	}
	if x, ok := envInt("LOG_MAX_AGE_DAYS"); ok && x >= 0 {
		cfg.Log.MaxAgeDays = x
	}
}

// envInt reports the integer value of key; unset or malformed values are
// ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return x, true
}
