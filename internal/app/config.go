package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/buzzer/internal/event"
	"github.com/xenking/buzzer/internal/storage/s3"
	"github.com/xenking/buzzer/internal/stripe"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the API server configuration, loadable from environment
// variables (BUZZER_ prefix), a .env file, flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (BUZZER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	S3          s3.Config
	Stripe      stripe.Config
	Events      event.Config
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls token signing and password hashing.
type AuthConfig struct {
	AccessSecret  string        `usage:"HS256 secret for access tokens" flag:"access-secret"`
	RefreshSecret string        `usage:"HS256 secret for refresh tokens" flag:"refresh-secret"`
	AccessTTL     time.Duration `default:"1h" usage:"access token lifetime"`
	RefreshTTL    time.Duration `default:"168h" usage:"refresh token lifetime"`
	Issuer        string        `default:"buzzer" usage:"token issuer claim"`
	BcryptCost    int           `default:"10" usage:"bcrypt cost for password hashes"`
}

// RateLimitConfig controls the per-client sliding window rate limiters.
type RateLimitConfig struct {
	Max        int           `default:"100" usage:"Max requests per window"`
	Window     time.Duration `default:"1m"  usage:"Rate limit window duration"`
	AuthMax    int           `default:"10" usage:"Max login/register attempts per auth window"`
	AuthWindow time.Duration `default:"15m" usage:"Login/register rate limit window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Load reads configuration into dst. A .env file in the working directory
// is applied first; variables already set in the environment win.
func Load(dst any, skipFlags bool) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "load .env")
	}
	loader := aconfig.LoaderFor(dst, aconfig.Config{
		EnvPrefix: "BUZZER",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/buzzer/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return errors.Wrap(err, "load config")
	}
	return nil
}

// LoadConfig loads the API server configuration and applies platform
// defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	var cfg Config
	if err := Load(&cfg, skipFlags); err != nil {
		return nil, err
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set BUZZER_DATABASE_URL or DATABASE_URL")
	case c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "":
		return errors.New("access and refresh token secrets are required")
	case c.Auth.AccessSecret == c.Auth.RefreshSecret:
		return errors.New("access and refresh token secrets must differ")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's BUZZER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
