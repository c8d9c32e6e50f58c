package coleta

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	// DBPath is the SQLite cache database. Default: "data/coleta.db".
	DBPath string `yaml:"db_path"`

	Site    SiteConfig    `yaml:"site"`
	Browser BrowserConfig `yaml:"browser"`
	Pacing  PacingConfig  `yaml:"pacing"`
	Cache   CacheConfig   `yaml:"cache"`
	Limits  LimitsConfig  `yaml:"limits"`
}

// SiteConfig holds the marketplace's URL layout and category codes.
type SiteConfig struct {
	BaseURL    string `yaml:"base_url"`
	SearchBase string `yaml:"search_base"`
	PageSize   int    `yaml:"page_size"`

	// Categories maps friendly names ("celulares") to site codes
	// ("MLB1055"). Queries accept either.
	Categories map[string]string `yaml:"categories"`

	// BlockSignatures override the phrases that mark an interstitial.
	BlockSignatures []string `yaml:"block_signatures"`
}

// BrowserConfig controls Chrome and the stealth identity pool.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"` // WebSocket URL; empty = launch local
	Headful          bool          `yaml:"headful"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	SettleTimeout    time.Duration `yaml:"settle_timeout"`
	FingerprintReuse int           `yaml:"fingerprint_reuse"`
}

// PacingConfig bounds the randomized inter-request delays.
type PacingConfig struct {
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	RetryCap time.Duration `yaml:"retry_cap"`
}

// CacheConfig controls result caching.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LimitsConfig bounds one extraction run.
type LimitsConfig struct {
	MaxPages           int `yaml:"max_pages"`
	MaxProductsPerPage int `yaml:"max_products_per_page"`
	MaxRetries         int `yaml:"max_retries"`
}

// DefaultCategories are the site's main category codes.
func DefaultCategories() map[string]string {
	return map[string]string{
		"eletronicos": "MLB1000",
		"celulares":   "MLB1055",
		"informatica": "MLB1648",
		"casa":        "MLB1574",
		"moda":        "MLB1430",
		"esportes":    "MLB1276",
		"livros":      "MLB3025",
		"beleza":      "MLB263532",
		"games":       "MLB1144",
		"automotivo":  "MLB1743",
	}
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "data/coleta.db"
	}
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = "https://www.mercadolivre.com.br"
	}
	if c.Site.SearchBase == "" {
		c.Site.SearchBase = "https://lista.mercadolivre.com.br"
	}
	if c.Site.PageSize <= 0 {
		c.Site.PageSize = 50
	}
	if c.Site.Categories == nil {
		c.Site.Categories = DefaultCategories()
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Browser.SettleTimeout <= 0 {
		c.Browser.SettleTimeout = 5 * time.Second
	}
	if c.Browser.FingerprintReuse <= 0 {
		c.Browser.FingerprintReuse = 8
	}
	if c.Pacing.MinDelay <= 0 {
		c.Pacing.MinDelay = time.Second
	}
	if c.Pacing.MaxDelay <= c.Pacing.MinDelay {
		c.Pacing.MaxDelay = 3 * time.Second
	}
	if c.Pacing.RetryCap <= 0 {
		c.Pacing.RetryCap = 30 * time.Second
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 2 * time.Hour
	}
	if c.Limits.MaxPages <= 0 {
		c.Limits.MaxPages = 10
	}
	if c.Limits.MaxProductsPerPage <= 0 {
		c.Limits.MaxProductsPerPage = 50
	}
	if c.Limits.MaxRetries <= 0 {
		c.Limits.MaxRetries = 3
	}
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coleta: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("coleta: parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
