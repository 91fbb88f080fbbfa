// Package config loads server settings from defaults, an optional YAML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type AppConfig struct {
	// Env "development" exposes internal error detail in responses.
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// TrustedProxy honours X-Forwarded-For and X-Real-IP. Enable it only
	// behind a reverse proxy that overwrites those headers.
	TrustedProxy bool `yaml:"trusted_proxy"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	// Mode selects the bearer verifier: "jwt" or "firebase".
	Mode                   string `yaml:"mode"`
	JWTSecret              string `yaml:"jwt_secret"`
	JWTIssuer              string `yaml:"jwt_issuer"`
	FirebaseCredentialFile string `yaml:"firebase_credentials_file"`
	FirebaseProjectID      string `yaml:"firebase_project_id"`
}

type RateLimitConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	// Limit is the bucket size, RefillRate tokens per second.
	Limit      int `yaml:"limit"`
	RefillRate int `yaml:"refill_rate"`
}

func (c *Config) Development() bool {
	return strings.EqualFold(c.App.Env, "development")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func Default() *Config {
	return &Config{
		App:      AppConfig{Env: "production", LogLevel: "info"},
		Server:   ServerConfig{Host: "0.0.0.0", Port: "5000", CORSOrigins: []string{"*"}},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "data/community.db"},
		Auth:     AuthConfig{Mode: "jwt", JWTIssuer: "community"},
		RateLimit: RateLimitConfig{
			Limit:      30,
			RefillRate: 1,
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies .env and
// environment overrides. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogLevel, "LOG_LEVEL")
	setString(&c.Server.Host, "HOST")
	setString(&c.Server.Port, "PORT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	setBool(&c.Server.TrustedProxy, "TRUSTED_PROXY")
	setString(&c.Database.Driver, "DB_DRIVER")
	if c.Database.Driver == "sqlite3" {
		setString(&c.Database.DSN, "DB_PATH")
	}
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Auth.Mode, "AUTH_MODE")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.JWTIssuer, "JWT_ISSUER")
	setString(&c.Auth.FirebaseCredentialFile, "FIREBASE_SERVICE_ACCOUNT_PATH")
	setString(&c.Auth.FirebaseProjectID, "FIREBASE_PROJECT_ID")
	setString(&c.RateLimit.RedisAddr, "REDIS_ADDR")
	setString(&c.RateLimit.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.RateLimit.Limit, "RATE_LIMIT")
	setInt(&c.RateLimit.RefillRate, "RATE_REFILL")
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is empty")
	}
	switch c.Auth.Mode {
	case "jwt", "firebase":
	default:
		return fmt.Errorf("auth.mode must be jwt or firebase, got %q", c.Auth.Mode)
	}
	if c.Server.Port == "" {
		return errors.New("server.port is empty")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
