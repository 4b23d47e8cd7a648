// Package config provides application configuration loading and the
// connections built from it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me-in-production"

// Config holds application configuration values loaded from .env and the environment.
type Config struct {
	Port                    string        `mapstructure:"PORT"`
	Env                     string        `mapstructure:"ENV"`
	MongoURI                string        `mapstructure:"MONGO_URI"`
	MongoDatabase           string        `mapstructure:"MONGO_DATABASE"`
	MongoTransactions       bool          `mapstructure:"MONGO_TRANSACTIONS"`
	PostgresURL             string        `mapstructure:"POSTGRES_URL"`
	RedisURL                string        `mapstructure:"REDIS_URL"`
	JWTSecret               string        `mapstructure:"JWT_SECRET"`
	JWTExpire               time.Duration `mapstructure:"JWT_EXPIRE"`
	FileUploadPath          string        `mapstructure:"FILE_UPLOAD_PATH"`
	MaxFileUpload           int64         `mapstructure:"MAX_FILE_UPLOAD"`
	GeocoderProvider        string        `mapstructure:"GEOCODER_PROVIDER"`
	GeocoderAPIKey          string        `mapstructure:"GEOCODER_API_KEY"`
	FirebaseCredentialsPath string        `mapstructure:"FIREBASE_CREDENTIALS_PATH"`
	MetricsPort             string        `mapstructure:"METRICS_PORT"`
	AllowedOrigins          string        `mapstructure:"ALLOWED_ORIGINS"`
	RateLimit               int           `mapstructure:"RATE_LIMIT"`
	RateLimitWindow         time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
}

// Load reads .env (when present) and the environment into a validated Config.
func Load() (*Config, error) {
	// a missing .env is fine; variables may come from the environment
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// every key needs a default so AutomaticEnv can see it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "socialmedia")
	v.SetDefault("MONGO_TRANSACTIONS", false)
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_EXPIRE", 30*24*time.Hour)
	v.SetDefault("FILE_UPLOAD_PATH", "./public/uploads")
	v.SetDefault("MAX_FILE_UPLOAD", 1000000)
	v.SetDefault("GEOCODER_PROVIDER", "openstreetmap")
	v.SetDefault("GEOCODER_API_KEY", "")
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "")
	v.SetDefault("METRICS_PORT", "9090")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", 15*time.Minute)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// IsDevelopment reports whether the service runs in development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Origins splits AllowedOrigins into a list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MongoURI == "" {
		return errors.New("MONGO_URI is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTExpire <= 0 {
		return errors.New("JWT_EXPIRE must be positive")
	}
	if c.MaxFileUpload <= 0 {
		return errors.New("MAX_FILE_UPLOAD must be positive")
	}
	if c.RateLimit < 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT must not be negative and RATE_LIMIT_WINDOW must be positive")
	}
	switch c.GeocoderProvider {
	case "openstreetmap", "google", "mapquest":
	default:
		return fmt.Errorf("unknown GEOCODER_PROVIDER %q", c.GeocoderProvider)
	}
	if c.GeocoderProvider != "openstreetmap" && c.GeocoderAPIKey == "" {
		return fmt.Errorf("GEOCODER_API_KEY is required for %s", c.GeocoderProvider)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
	}
	return nil
}
