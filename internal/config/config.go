package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/GTDGit/pesapal_api/internal/models"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	Pesapal PesapalConfig
	Redis   RedisConfig
	Admin   AdminConfig
	CORS    CORSConfig
}

// PesapalConfig holds one credential set per gateway environment plus shared
// transport settings.
type PesapalConfig struct {
	Sandbox     PesapalEnvConfig
	Production  PesapalEnvConfig
	HTTPTimeout time.Duration
}

// PesapalEnvConfig is the credential set for one environment.
type PesapalEnvConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
}

// Configured reports whether both consumer key and secret are present.
func (c PesapalEnvConfig) Configured() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// RedisConfig contains Redis connection parameters for the order mirror.
// The mirror is disabled when Host is empty.
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	MirrorTTL time.Duration
}

// AdminConfig guards the diagnostic order routes. Empty secret leaves them open.
type AdminConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first.
func Load() (*Config, error) {
	// Missing .env is fine, real environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Port = getEnv("PORT", "5000")
	cfg.Env = getEnv("ENV", "development")

	cfg.Pesapal = PesapalConfig{
		Sandbox: PesapalEnvConfig{
			BaseURL:        getEnv("PESAPAL_SANDBOX_BASE_URL", pesapal.SandboxBaseURL),
			ConsumerKey:    getEnv("PESAPAL_SANDBOX_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("PESAPAL_SANDBOX_CONSUMER_SECRET", ""),
			CallbackURL:    getEnv("PESAPAL_SANDBOX_CALLBACK_URL", "http://localhost:5000/payment/callback"),
		},
		Production: PesapalEnvConfig{
			BaseURL:        getEnv("PESAPAL_PRODUCTION_BASE_URL", pesapal.ProductionBaseURL),
			ConsumerKey:    getEnv("PESAPAL_PRODUCTION_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("PESAPAL_PRODUCTION_CONSUMER_SECRET", ""),
			CallbackURL:    getEnv("PESAPAL_PRODUCTION_CALLBACK_URL", ""),
		},
	}

	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	cfg.Admin = AdminConfig{
		JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
	}

	var err error
	if cfg.Pesapal.HTTPTimeout, err = parseDurationEnv("PESAPAL_HTTP_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid PESAPAL_HTTP_TIMEOUT: %w", err)
	}
	if cfg.Redis.MirrorTTL, err = parseDurationEnv("ORDER_MIRROR_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid ORDER_MIRROR_TTL: %w", err)
	}
	if cfg.Admin.TokenTTL, err = parseDurationEnv("ADMIN_TOKEN_TTL", "12h"); err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TOKEN_TTL: %w", err)
	}

	if !cfg.Pesapal.Sandbox.Configured() && !cfg.Pesapal.Production.Configured() {
		return nil, errors.New("pesapal configuration incomplete: set PESAPAL_SANDBOX_CONSUMER_KEY/SECRET or PESAPAL_PRODUCTION_CONSUMER_KEY/SECRET")
	}
	if cfg.Pesapal.Production.Configured() && cfg.Pesapal.Production.CallbackURL == "" {
		return nil, errors.New("PESAPAL_PRODUCTION_CALLBACK_URL must be set when production credentials are configured")
	}

	return cfg, nil
}

// Environment returns the credential set for env.
func (c *PesapalConfig) Environment(env models.Environment) PesapalEnvConfig {
	if env == models.EnvProduction {
		return c.Production
	}
	return c.Sandbox
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
