package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath       string
	ProvidersDir string

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Crawling
	UserAgent     string
	HTTPTimeout   time.Duration
	LowWaterMark  int
	ThrottleLevel int
	ThreadCount   int

	// Maintenance and notifications
	PruneSchedule            string
	DiagnosticsRetentionDays int
	NotifyFirstDelay         time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
