package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"sjsage522/keebsteals/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Environment, only "development" opens the cron endpoint to any caller
	Environment string `envconfig:"KEEBSTEALS_ENVIRONMENT" default:"production"`

	// HTTP server
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	SiteURL  string `envconfig:"SITE_URL" default:"https://keebsteals.vercel.app"`

	// Database configuration
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	AutoMigrate    bool   `envconfig:"DATABASE_AUTO_MIGRATE" default:"false"`

	// Redis configuration
	RedisAddr            string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB              int    `envconfig:"REDIS_DB" default:"0"`
	RedisStream          string `envconfig:"REDIS_STREAM" default:"keebsteals:deals"`
	RedisStreamMaxLength int    `envconfig:"REDIS_STREAM_MAX_LENGTH" default:"1000"`

	// Memcache configuration, empty means an in-process cache
	MemcacheAddr  string        `envconfig:"MEMCACHE_ADDR"`
	DealsCacheTTL time.Duration `envconfig:"DEALS_CACHE_TTL" default:"5m"`

	// Storefront configuration
	StoreBaseURL   string        `envconfig:"STORE_BASE_URL" default:"https://epomaker.com"`
	ListingURL     string        `envconfig:"LISTING_URL" default:"https://epomaker.com/collections/deals-1?sort_by=best-selling&filter.p.product_type=Keyboard&filter.v.price.gte=&filter.v.price.lte=&section_id=template--22451015713076__main"`
	ListingPages   int           `envconfig:"LISTING_PAGES" default:"6"`
	AffiliateRef   string        `envconfig:"AFFILIATE_REF" default:"6573596.dggYxeW3Rw"`
	RateLimitBlock time.Duration `envconfig:"RATE_LIMIT_BLOCK" default:"5m"`

	// Sync configuration
	SyncInterval    time.Duration `envconfig:"SYNC_INTERVAL" default:"24h"`
	SyncConcurrency int           `envconfig:"SYNC_CONCURRENCY" default:"2"`
	SyncOnStart     bool          `envconfig:"SYNC_ON_START" default:"false"`
	DiscoverLinks   bool          `envconfig:"SYNC_DISCOVER_LINKS" default:"true"`
	CronUserAgent   string        `envconfig:"CRON_USER_AGENT" default:"vercel-cron/1.0"`
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.NewConfiguration("parsing environment", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.NewConfiguration("DATABASE_URL is required", nil)
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return errors.NewConfiguration(fmt.Sprintf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver), nil)
	}
	for name, raw := range map[string]string{"STORE_BASE_URL": c.StoreBaseURL, "LISTING_URL": c.ListingURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.NewConfiguration(name+" must be an absolute URL", err)
		}
	}
	if c.ListingPages < 1 {
		return errors.NewConfiguration("LISTING_PAGES must be at least 1", nil)
	}
	if c.SyncConcurrency < 1 {
		return errors.NewConfiguration("SYNC_CONCURRENCY must be at least 1", nil)
	}
	if c.SyncInterval <= 0 {
		return errors.NewConfiguration("SYNC_INTERVAL must be positive", nil)
	}
	return nil
}

// IsDevelopment reports whether the service runs in the development environment
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

