package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	rcron "github.com/robfig/cron/v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/cazzmachine.db" description:"Path to the SQLite database file"`
	ProvidersDir string `long:"providers-dir" env:"PROVIDERS_DIR" default:"./providers" description:"Directory containing provider configuration files"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://cazz.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Crawling
	UserAgent     string `long:"user-agent" env:"USER_AGENT" default:"cazzmachine/1.0" description:"User agent string for HTTP requests"`
	HTTPTimeout   int    `long:"http-timeout" env:"HTTP_TIMEOUT" default:"15" description:"Timeout for provider requests in seconds"`
	LowWaterMark  int    `long:"low-water-mark" env:"LOW_WATER_MARK" default:"20" description:"Crawl only while fewer than this many items are pending"`
	ThrottleLevel int    `long:"throttle-level" env:"THROTTLE_LEVEL" default:"5" description:"Initial throttle level (1-9)"`
	ThreadCount   int    `long:"thread-count" env:"THREAD_COUNT" default:"1" description:"Initial number of parallel consumption threads (1-8)"`

	// Maintenance and notifications
	PruneSchedule            string `long:"prune-schedule" env:"PRUNE_SCHEDULE" default:"0 0 * * *" description:"Cron expression for pruning expired items"`
	DiagnosticsRetentionDays int    `long:"diagnostics-retention-days" env:"DIAGNOSTICS_RETENTION_DAYS" default:"7" description:"Diagnostic events older than this are removed during maintenance"`
	NotifyFirstDelay         int    `long:"notify-first-delay" env:"NOTIFY_FIRST_DELAY" default:"10" description:"Delay before the first notification in seconds"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"Local" description:"Timezone for session dates (e.g., Local, UTC, Europe/Rome)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return parse(nil)
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:                   raw.DBPath,
		ProvidersDir:             raw.ProvidersDir,
		Port:                     raw.Port,
		BaseUrl:                  raw.BaseUrl,
		APIAccessKey:             raw.APIAccessKey,
		UserAgent:                raw.UserAgent,
		HTTPTimeout:              time.Duration(raw.HTTPTimeout) * time.Second,
		LowWaterMark:             raw.LowWaterMark,
		ThrottleLevel:            ClampThrottleLevel(raw.ThrottleLevel),
		ThreadCount:              ClampThreadCount(raw.ThreadCount),
		PruneSchedule:            raw.PruneSchedule,
		DiagnosticsRetentionDays: raw.DiagnosticsRetentionDays,
		NotifyFirstDelay:         time.Duration(raw.NotifyFirstDelay) * time.Second,
		Timezone:                 raw.Timezone,
		Debug:                    raw.Debug,
		Version:                  GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.LowWaterMark <= 0 {
		return fmt.Errorf("low water mark must be positive")
	}
	if c.DiagnosticsRetentionDays < 0 {
		return fmt.Errorf("diagnostics retention days must be non-negative")
	}
	if c.NotifyFirstDelay < 0 {
		return fmt.Errorf("notify first delay must be non-negative")
	}
	if _, err := rcron.ParseStandard(c.PruneSchedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", c.PruneSchedule, err)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" && timezone != "Local" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
