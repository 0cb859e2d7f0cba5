/*
Package config loads server and CLI configuration.

PRECEDENCE (highest first):
  1. Environment (HRMS_ prefix, dots become underscores: HRMS_SERVER_PORT)
  2. .env in the working directory (loaded into the environment first)
  3. YAML file (-config flag, else ./config/config.yaml or ./config.yaml)
  4. Defaults below

SEE ALSO:
  - logger: Built from Log
  - cmd/server, cmd/leavectl: The two consumers
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/warp/leave-engine/leave"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Client   ClientConfig   `mapstructure:"client"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Rollover RolloverConfig `mapstructure:"rollover"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration   `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	CORS           CORSConfig      `mapstructure:"cors"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RateLimitConfig is per client IP. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MirrorConfig selects where the CLI keeps its local copy.
type MirrorConfig struct {
	Backend string `mapstructure:"backend"` // file | redis
	Dir     string `mapstructure:"dir"`
}

type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"` // sent as X-Ledger-Token
}

// LedgerConfig controls the raw ledger endpoints the CLI talks to.
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// PolicyConfig overrides the built-in allowances, keyed by leave type.
type PolicyConfig struct {
	Defaults      map[string]float64 `mapstructure:"defaults"`
	CarryOverCaps map[string]float64 `mapstructure:"carryover_caps"`
}

type RolloverConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Load reads configuration from path (may be empty), .env and the environment.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HRMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.rate_limit.rps", 20)
	v.SetDefault("server.rate_limit.burst", 40)

	v.SetDefault("db.path", "leave.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "leave.notifications")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mirror.backend", "file")
	v.SetDefault("mirror.dir", ".leavectl")

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", "15s")
	v.SetDefault("client.token", "")

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.token", "")

	v.SetDefault("rollover.enabled", true)
	v.SetDefault("rollover.schedule", "5 0 1 1 *")
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be between 1 and 65535")
	}
	switch c.Mirror.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("config: mirror.backend must be file or redis, got %q", c.Mirror.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers is required when kafka is enabled")
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("config: client.timeout must be positive")
	}
	for _, m := range []map[string]float64{c.Policy.Defaults, c.Policy.CarryOverCaps} {
		for label, days := range m {
			if _, err := leave.ParseType(label); err != nil {
				return fmt.Errorf("config: policy: %w", err)
			}
			if days < 0 {
				return fmt.Errorf("config: policy: %s must not be negative", label)
			}
		}
	}
	return nil
}

// LeavePolicy applies the configured overrides to the built-in policy.
func (c *Config) LeavePolicy() leave.Policy {
	p := leave.DefaultPolicy()
	for label, days := range c.Policy.Defaults {
		if t, err := leave.ParseType(label); err == nil {
			p.Defaults[t] = decimal.NewFromFloat(days)
		}
	}
	for label, days := range c.Policy.CarryOverCaps {
		if t, err := leave.ParseType(label); err == nil {
			p.CarryOverCaps[t] = decimal.NewFromFloat(days)
		}
	}
	return p
}
