package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTP      HTTP      `yaml:"http"`
	SQLite    SQLite    `yaml:"sqlite"`
	Redis     Redis     `yaml:"redis"`
	JWT       JWT       `yaml:"jwt"`
	RateLimit RateLimit `yaml:"rate-limit"`
	Session   Session   `yaml:"session"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type HTTP struct {
	Addr    string `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	WebDir  string `yaml:"web-dir" env:"HTTP_WEB_DIR" env-default:"./web"`
	TLSCert string `yaml:"tls-cert" env:"HTTP_TLS_CERT"`
	TLSKey  string `yaml:"tls-key" env:"HTTP_TLS_KEY"`
}

type SQLite struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"./master.db"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type JWT struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"JWT_TTL" env-default:"24h"`
}

type RateLimit struct {
	Max    int64         `yaml:"max" env:"RATE_LIMIT_MAX" env-default:"5"`
	Window time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"15m"`
}

type Session struct {
	TTL time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"24h"`
}

type Telemetry struct {
	Enabled     bool   `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"otel-collector:4317"`
	ServiceName string `yaml:"service-name" env:"OTEL_SERVICE_NAME" env-default:"tictactoe-history"`
}

// TLSEnabled reports whether both a certificate and a key are configured.
func (h HTTP) TLSEnabled() bool {
	return h.TLSCert != "" && h.TLSKey != ""
}

// Load reads the configuration with Read and validates it for serving.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

// Read reads the yaml file at path and applies env overrides. A missing file
// is not an error: the configuration then comes from env and defaults only.
// Nothing is validated, which suits the offline commands.
func Read(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("unable to load config file: %w", err)
			}
			return cfg, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to stat config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("unable to load config from env: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required (jwt.secret or JWT_SECRET)")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if (c.HTTP.TLSCert == "") != (c.HTTP.TLSKey == "") {
		return errors.New("http tls-cert and tls-key must be set together")
	}
	return nil
}
