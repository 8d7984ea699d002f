package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables
// (JETPREVIEW_ prefix, dots replaced by underscores: JETPREVIEW_POOL_MAX_TOTAL).
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	YouTube  YouTubeConfig  `mapstructure:"youtube"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TelegramConfig configures the bot. The bot is disabled without a token.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type StorageConfig struct {
	BadgerPath string        `mapstructure:"badger_path"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BrowserConfig configures the headless browsers. With Enabled false, pages
// that need rendering are fetched plainly.
type BrowserConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Bin       string `mapstructure:"bin"`
	Headless  bool   `mapstructure:"headless"`
	NoSandbox bool   `mapstructure:"no_sandbox"`
	UserAgent string `mapstructure:"user_agent"`
	Locale    string `mapstructure:"locale"`
}

type PoolConfig struct {
	MinIdle          int           `mapstructure:"min_idle"`
	MaxTotal         int           `mapstructure:"max_total"`
	BorrowTimeout    time.Duration `mapstructure:"borrow_timeout"`
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	ValidateTimeout  time.Duration `mapstructure:"validate_timeout"`
}

type ScraperConfig struct {
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// YouTubeConfig configures the Data API integration. Without an API key
// YouTube links are handled by the generic fetch.
type YouTubeConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Backend        string        `mapstructure:"backend"`
	TTL            time.Duration `mapstructure:"ttl"`
	ComputeTimeout time.Duration `mapstructure:"compute_timeout"`
	RedisURL       string        `mapstructure:"redis_url"`
	PurgeInterval  time.Duration `mapstructure:"purge_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("telegram.token", "")

	v.SetDefault("storage.badger_path", "./badger_data")
	v.SetDefault("storage.gc_interval", 5*time.Minute)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 45*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("browser.locale", "ko-KR")

	v.SetDefault("pool.min_idle", 1)
	v.SetDefault("pool.max_total", 4)
	v.SetDefault("pool.borrow_timeout", 5*time.Second)
	v.SetDefault("pool.eviction_interval", 30*time.Second)
	v.SetDefault("pool.idle_timeout", 5*time.Minute)
	v.SetDefault("pool.validate_timeout", 5*time.Second)

	v.SetDefault("scraper.wait_timeout", 10*time.Second)
	v.SetDefault("scraper.reset_timeout", 3*time.Second)
	v.SetDefault("scraper.fetch_timeout", 10*time.Second)
	v.SetDefault("scraper.max_body_bytes", 2<<20)

	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.timeout", 10*time.Second)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", 12*time.Hour)
	v.SetDefault("cache.compute_timeout", 30*time.Second)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.purge_interval", 10*time.Minute)
}

// LoadConfig reads config.yaml from path, then applies environment overrides.
// A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("JETPREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Environment variables and defaults still apply without a file
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Storage.BadgerPath == "" {
		errs = append(errs, errors.New("storage.badger_path must be set"))
	}
	if c.Pool.MaxTotal < 1 {
		errs = append(errs, fmt.Errorf("pool.max_total must be at least 1, got %d", c.Pool.MaxTotal))
	}
	if c.Pool.MinIdle < 0 || c.Pool.MinIdle > c.Pool.MaxTotal {
		errs = append(errs, fmt.Errorf("pool.min_idle must be between 0 and pool.max_total, got %d", c.Pool.MinIdle))
	}

	positive := map[string]time.Duration{
		"pool.borrow_timeout":   c.Pool.BorrowTimeout,
		"pool.validate_timeout": c.Pool.ValidateTimeout,
		"scraper.wait_timeout":  c.Scraper.WaitTimeout,
		"scraper.reset_timeout": c.Scraper.ResetTimeout,
		"scraper.fetch_timeout": c.Scraper.FetchTimeout,
		"youtube.timeout":       c.YouTube.Timeout,
		"cache.ttl":             c.Cache.TTL,
		"cache.compute_timeout": c.Cache.ComputeTimeout,
		"http.request_timeout":  c.HTTP.RequestTimeout,
		"http.shutdown_timeout": c.HTTP.ShutdownTimeout,
	}
	for key, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}
	if c.Pool.IdleTimeout < 0 || c.Pool.EvictionInterval < 0 {
		errs = append(errs, errors.New("pool.idle_timeout and pool.eviction_interval must not be negative"))
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheBadger:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, badger, redis", c.Cache.Backend))
	}

	return errors.Join(errs...)
}
