package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/illallangi/cloudflare-tools/internal/account"
	"github.com/illallangi/cloudflare-tools/internal/logging"
)

// CacheFileName is the cache database name inside the user config directory.
const CacheFileName = "cloudflare-tools.db"

// Config holds all configuration for the CLI
type Config struct {
	// Credentials
	AccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	APIToken  string `env:"CLOUDFLARE_API_TOKEN"`

	// API Configuration
	BaseURL string  `env:"CLOUDFLARE_API_BASE_URL" validate:"required,url"`
	RPS     float64 `env:"CLOUDFLARE_API_RPS" envDefault:"4" validate:"gt=0"`
	Burst   int     `env:"CLOUDFLARE_API_BURST" envDefault:"1" validate:"gt=0"`

	// Cache Configuration
	CacheFile    string        `env:"CLOUDFLARE_TOOLS_CACHE_FILE"`
	CacheTTL     time.Duration `env:"CLOUDFLARE_TOOLS_CACHE_TTL" envDefault:"1h" validate:"gte=0"`
	DisableCache bool          `env:"CLOUDFLARE_TOOLS_NO_CACHE"`

	// Logging Configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFile  string `env:"LOG_FILE"`
}

var validate = validator.New()

// Load loads the configuration from environment variables and a .env file
// in the working directory. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = account.DefaultBaseURL
	}

	if cfg.CacheFile == "" {
		path, err := DefaultCacheFile()
		if err != nil {
			return nil, err
		}
		cfg.CacheFile = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultCacheFile returns the cache database path in the per-user config directory.
func DefaultCacheFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(dir, CacheFileName), nil
}

// Validate checks everything except the credentials, which only the
// commands that call the API require.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q validation (value %v)", e.Field(), e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Logging returns the logging configuration derived from c.
func (c *Config) Logging() *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.File = c.LogFile
	return lc
}
