package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the process environment, optionally seeded from a .env file.
type Config struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret      string   `env:"JWT_SECRET,required,notEmpty"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	// TrustedProxies lists the peers whose X-Forwarded-For / X-Real-IP headers are believed.
	TrustedProxies []netip.Prefix `env:"TRUSTED_PROXIES" envSeparator:","`

	HitFlushInterval time.Duration `env:"HIT_FLUSH_INTERVAL" envDefault:"10s"`
	AgreeRateLimit   int           `env:"AGREE_RATE_LIMIT" envDefault:"20"`
	AgreeRateWindow  time.Duration `env:"AGREE_RATE_WINDOW" envDefault:"1m"`

	Database Database

	// DotEnvLoaded reports whether Load found a .env file.
	DotEnvLoaded bool `env:"-"`
}

// Database keeps the historical lower-case variable names used by the deployment.
type Database struct {
	User     string `env:"user"`
	Password string `env:"password"`
	Host     string `env:"host" envDefault:"localhost"`
	Port     string `env:"port" envDefault:"5432"`
	Name     string `env:"dbname"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"require"`
}

// DSN returns the postgres connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// Load reads .env when present and parses the environment into a Config.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.DotEnvLoaded = loaded
	return cfg, nil
}

// Parse parses the current environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.AgreeRateLimit <= 0 {
		return nil, fmt.Errorf("AGREE_RATE_LIMIT must be positive, got %d", cfg.AgreeRateLimit)
	}
	if cfg.AgreeRateWindow <= 0 {
		return nil, fmt.Errorf("AGREE_RATE_WINDOW must be positive, got %s", cfg.AgreeRateWindow)
	}
	if cfg.HitFlushInterval <= 0 {
		return nil, fmt.Errorf("HIT_FLUSH_INTERVAL must be positive, got %s", cfg.HitFlushInterval)
	}
	return &cfg, nil
}
