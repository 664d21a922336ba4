package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradeboard/internal/domain"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds every application setting. Values load from the yaml file,
// then .env / environment variables override the sensitive ones.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr       string `yaml:"addr"`
		CORSOrigin string `yaml:"cors_origin"`
	} `yaml:"server"`

	API struct {
		CMC struct {
			BaseURL         string `yaml:"base_url"`
			APIKey          string `yaml:"api_key"`
			ListingLimit    int    `yaml:"listing_limit"`
			PollIntervalSec int    `yaml:"poll_interval_sec"`
		} `yaml:"cmc"`
		Gemini struct {
			BaseURL    string `yaml:"base_url"`
			APIKey     string `yaml:"api_key"`
			Model      string `yaml:"model"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"gemini"`
	} `yaml:"api"`

	Catalog struct {
		RefreshCron string `yaml:"refresh_cron"` // cron expression for catalog refresh
	} `yaml:"catalog"`

	Storage struct {
		Path string `yaml:"path"` // sqlite file; empty = per-user config dir
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies .env and
// environment overrides and validates the result. A missing market-data API
// key is fatal here: the process refuses to start half-configured.
func LoadConfig(path string) (*Config, error) {
	// .env is a developer convenience; absence is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tradeboard"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "http://localhost:5173"
	}
	if cfg.API.CMC.BaseURL == "" {
		cfg.API.CMC.BaseURL = "https://pro-api.coinmarketcap.com/v1"
	}
	if cfg.API.CMC.ListingLimit <= 0 {
		cfg.API.CMC.ListingLimit = 100
	}
	if cfg.API.CMC.PollIntervalSec <= 0 {
		cfg.API.CMC.PollIntervalSec = 10
	}
	if cfg.API.Gemini.BaseURL == "" {
		cfg.API.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.API.Gemini.Model == "" {
		cfg.API.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.API.Gemini.TimeoutSec <= 0 {
		cfg.API.Gemini.TimeoutSec = 30
	}
	if cfg.Catalog.RefreshCron == "" {
		cfg.Catalog.RefreshCron = "@hourly"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.CMC.BaseURL, "http://") && !strings.HasPrefix(c.API.CMC.BaseURL, "https://") {
		return &domain.ConfigError{Field: "api.cmc.base_url", Err: fmt.Errorf("invalid URL: %s", c.API.CMC.BaseURL)}
	}
	if c.API.CMC.APIKey == "" {
		return &domain.ConfigError{Field: "api.cmc.api_key", Err: errors.New("market data API key is required (set CMC_API_KEY)")}
	}
	if !strings.HasPrefix(c.API.Gemini.BaseURL, "http://") && !strings.HasPrefix(c.API.Gemini.BaseURL, "https://") {
		return &domain.ConfigError{Field: "api.gemini.base_url", Err: fmt.Errorf("invalid URL: %s", c.API.Gemini.BaseURL)}
	}
	// Gemini key is deliberately optional: the chat bridge degrades to its
	// canned-response mode without one.
	return nil
}

// overrideWithEnv applies environment variables over file values.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("CMC_API_KEY"); key != "" {
		cfg.API.CMC.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.API.Gemini.APIKey = key
	}
	if addr := os.Getenv("TRADEBOARD_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		cfg.Server.CORSOrigin = origin
	}
}
