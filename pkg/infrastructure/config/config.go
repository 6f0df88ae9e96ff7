// Package config loads lotalloc settings from a YAML file, an optional .env file and LOTALLOC_* variables.
// Later sources win: defaults, then the file, then the environment.
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

	"github.com/vsinha/lotalloc/pkg/domain/services"
)

const envPrefix = "LOTALLOC_"

type Config struct {
	Operator   string           `yaml:"operator"`
	LogLevel   string           `yaml:"log_level"`
	Allocation AllocationConfig `yaml:"allocation"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	Redis      RedisConfig      `yaml:"redis"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	HTTP       HTTPConfig       `yaml:"http"`
}

type AllocationConfig struct {
	Strategy       string `yaml:"strategy"`
	CandidateLimit int    `yaml:"candidate_limit"`
	Prefetch       int    `yaml:"prefetch"`
	CacheSize      int    `yaml:"cache_size"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		LogLevel: "info",
		Allocation: AllocationConfig{
			Strategy:       services.StrategyFEFO,
			CandidateLimit: 50,
			Prefetch:       4,
			CacheSize:      256,
		},
		Redis: RedisConfig{LockTTL: 15 * time.Minute},
		AMQP:  AMQPConfig{Exchange: "lotalloc.events"},
		HTTP:  HTTPConfig{Addr: ":8080"},
	}
}

// Load reads path (optional) and applies environment overrides.
// A missing .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("OPERATOR", &c.Operator)
	str("LOG_LEVEL", &c.LogLevel)
	str("STRATEGY", &c.Allocation.Strategy)
	str("SQLITE_PATH", &c.SQLite.Path)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("AMQP_URL", &c.AMQP.URL)
	str("AMQP_EXCHANGE", &c.AMQP.Exchange)
	str("HTTP_ADDR", &c.HTTP.Addr)

	for key, dst := range map[string]*int{
		"CANDIDATE_LIMIT": &c.Allocation.CandidateLimit,
		"PREFETCH":        &c.Allocation.Prefetch,
		"CACHE_SIZE":      &c.Allocation.CacheSize,
		"REDIS_DB":        &c.Redis.DB,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(envPrefix + "LOCK_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sLOCK_TTL: %w", envPrefix, err)
		}
		c.Redis.LockTTL = ttl
	}
	return nil
}

// Validate rejects settings the engine cannot run with
func (c Config) Validate() error {
	if !strings.EqualFold(c.Allocation.Strategy, services.StrategyFEFO) {
		return fmt.Errorf("unsupported allocation strategy %q", c.Allocation.Strategy)
	}
	if c.Allocation.CandidateLimit < 0 {
		return fmt.Errorf("candidate_limit cannot be negative")
	}
	if c.Allocation.Prefetch < 1 {
		return fmt.Errorf("prefetch must be at least 1")
	}
	return nil
}
