package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Scraper    ScraperConfig
	Reviews    ReviewConfig
	Browser    BrowserConfig
	Checkpoint CheckpointConfig
	Output     OutputConfig
	Events     EventsConfig
	Status     StatusConfig
	Logging    LoggingConfig
	FastMode   bool
}

type ScraperConfig struct {
	BaseURL            string
	Keywords           []string
	MaxProducts        int
	Workers            int
	DelayMin           time.Duration
	DelayMax           time.Duration
	AdaptiveDelay      bool
	PageReadyTimeout   time.Duration
	SearchReadyTimeout time.Duration
	MaxSearchPages     int
	NavigationRetries  int
	CheckpointEvery    int
	SelectorsFile      string
}

// ReviewConfig holds the budgets and waits of the review collection loop.
type ReviewConfig struct {
	MaxReviews          int
	MaxElapsed          time.Duration
	MaxLoadMoreClicks   int
	MaxConsecutiveNoNew int
	SettleWait          time.Duration
	InitialWait         time.Duration
	ScrollPause         time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgent      string
	ProxyServer    string
}

type CheckpointConfig struct {
	Enabled         bool
	Dir             string
	MinSaveInterval time.Duration
}

type OutputConfig struct {
	Dir string
}

type EventsConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Stream        string
}

type StatusConfig struct {
	Addr string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Scraper: ScraperConfig{
			BaseURL:            getEnvOrDefault("SCRAPER_BASE_URL", "https://www.nykaa.com"),
			Keywords:           getStringSliceOrDefault("SCRAPER_KEYWORDS", []string{"mascara", "lip gloss"}),
			MaxProducts:        getIntOrDefault("SCRAPER_MAX_PRODUCTS", 50),
			Workers:            getIntOrDefault("SCRAPER_WORKERS", 2),
			DelayMin:           getDurationOrDefault("SCRAPER_DELAY_MIN", 2*time.Second),
			DelayMax:           getDurationOrDefault("SCRAPER_DELAY_MAX", 5*time.Second),
			AdaptiveDelay:      getBoolOrDefault("SCRAPER_ADAPTIVE_DELAY", false),
			PageReadyTimeout:   getDurationOrDefault("SCRAPER_PAGE_READY_TIMEOUT", 10*time.Second),
			SearchReadyTimeout: getDurationOrDefault("SCRAPER_SEARCH_READY_TIMEOUT", 15*time.Second),
			MaxSearchPages:     getIntOrDefault("SCRAPER_MAX_SEARCH_PAGES", 100),
			NavigationRetries:  getIntOrDefault("SCRAPER_NAVIGATION_RETRIES", 3),
			CheckpointEvery:    getIntOrDefault("SCRAPER_CHECKPOINT_EVERY", 5),
			SelectorsFile:      getEnvOrDefault("SCRAPER_SELECTORS_FILE", ""),
		},
		Reviews: ReviewConfig{
			MaxReviews:          getIntOrDefault("REVIEWS_MAX", 200),
			MaxElapsed:          getDurationOrDefault("REVIEWS_MAX_ELAPSED", 45*time.Second),
			MaxLoadMoreClicks:   getIntOrDefault("REVIEWS_MAX_LOAD_MORE", 100),
			MaxConsecutiveNoNew: getIntOrDefault("REVIEWS_MAX_NO_NEW_ROUNDS", 8),
			SettleWait:          getDurationOrDefault("REVIEWS_SETTLE_WAIT", 8*time.Second),
			InitialWait:         getDurationOrDefault("REVIEWS_INITIAL_WAIT", 8*time.Second),
			ScrollPause:         getDurationOrDefault("REVIEWS_SCROLL_PAUSE", 1*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-IN,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kolkata"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Checkpoint: CheckpointConfig{
			Enabled:         getBoolOrDefault("CHECKPOINT_ENABLED", true),
			Dir:             getEnvOrDefault("CHECKPOINT_DIR", "checkpoints"),
			MinSaveInterval: getDurationOrDefault("CHECKPOINT_MIN_SAVE_INTERVAL", 30*time.Second),
		},
		Output: OutputConfig{
			Dir: getEnvOrDefault("OUTPUT_DIR", "scrapped-data"),
		},
		Events: EventsConfig{
			RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
			RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
			Stream:        getEnvOrDefault("EVENTS_STREAM", "stream:scraper_progress"),
		},
		Status: StatusConfig{
			Addr: getEnvOrDefault("STATUS_ADDR", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if getBoolOrDefault("SCRAPER_FAST_MODE", false) {
		cfg.ApplyFastMode()
	}

	return cfg, nil
}

// ApplyFastMode trades detectability for speed: no delays between
// navigations and much tighter review budgets.
func (c *Config) ApplyFastMode() {
	c.FastMode = true
	c.Scraper.DelayMin = 0
	c.Scraper.DelayMax = 0
	c.Reviews.MaxElapsed = 10 * time.Second
	c.Reviews.MaxLoadMoreClicks = 50
	c.Reviews.MaxConsecutiveNoNew = 5
	c.Reviews.InitialWait = 2 * time.Second
	c.Reviews.SettleWait = 3 * time.Second
	c.Reviews.ScrollPause = 200 * time.Millisecond
}

// EffectiveWorkers caps the pool at one worker per keyword.
func (c *Config) EffectiveWorkers(keywords int) int {
	if keywords <= 1 {
		return 1
	}
	if c.Scraper.Workers < keywords {
		return c.Scraper.Workers
	}
	return keywords
}

func (c *Config) Validate() error {
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("SCRAPER_BASE_URL is required")
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.MaxProducts < 1 {
		return fmt.Errorf("SCRAPER_MAX_PRODUCTS must be at least 1")
	}

	if c.Scraper.DelayMin < 0 || c.Scraper.DelayMin > c.Scraper.DelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN must be between 0 and SCRAPER_DELAY_MAX")
	}

	if c.Scraper.MaxSearchPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_SEARCH_PAGES must be at least 1")
	}

	if c.Scraper.CheckpointEvery < 1 {
		return fmt.Errorf("SCRAPER_CHECKPOINT_EVERY must be at least 1")
	}

	if c.Reviews.MaxReviews < 0 {
		return fmt.Errorf("REVIEWS_MAX cannot be negative")
	}

	if c.Reviews.MaxElapsed <= 0 || c.Reviews.MaxLoadMoreClicks < 1 || c.Reviews.MaxConsecutiveNoNew < 1 {
		return fmt.Errorf("review budgets must be positive")
	}

	if c.Checkpoint.Enabled && c.Checkpoint.Dir == "" {
		return fmt.Errorf("CHECKPOINT_DIR is required when checkpoints are enabled")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
