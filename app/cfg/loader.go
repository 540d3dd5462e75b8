package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"time"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// Options are the global flags shared by every command.
type Options struct {
	// Storage configuration
	DBPath         string `long:"db-path" env:"DB_PATH" default:"./canopy.db" description:"SQLite database file"`
	StorageBackend string `long:"storage" env:"STORAGE_BACKEND" default:"fs" choice:"fs" choice:"redis" description:"Object store backend for article bodies"`
	StorageDir     string `long:"storage-dir" env:"STORAGE_DIR" default:"./content" description:"Directory for the fs object store"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for the redis object store"`
	RedisPassword  string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB        int    `long:"redis-db" env:"REDIS_DB" description:"Redis database number"`

	// Application configuration
	FeedsDir     string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing subscription seed files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of feeds polled concurrently"`
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Timeout for a single outbound request in seconds"`
	PollTimeout  int    `long:"poll-timeout" env:"POLL_TIMEOUT" default:"300" description:"Timeout for polling one feed in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" description:"User agent for outbound requests (defaults to a desktop browser)"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
}

var globalCfg *Cfg

// Build validates parsed options and installs the result as the global config.
func (o *Options) Build() (*Cfg, error) {
	if o.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", o.WorkerCount)
	}
	if o.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %d", o.FetchTimeout)
	}
	if o.PollTimeout <= 0 {
		return nil, fmt.Errorf("poll timeout must be positive, got %d", o.PollTimeout)
	}
	if o.StorageBackend != StorageFS && o.StorageBackend != StorageRedis {
		return nil, fmt.Errorf("unknown storage backend %q", o.StorageBackend)
	}
	if o.LogFormat != LogFormatText && o.LogFormat != LogFormatJSON {
		return nil, fmt.Errorf("unknown log format %q", o.LogFormat)
	}

	cfg := &Cfg{
		DBPath:         o.DBPath,
		StorageBackend: o.StorageBackend,
		StorageDir:     o.StorageDir,
		RedisAddr:      o.RedisAddr,
		RedisPassword:  o.RedisPassword,
		RedisDB:        o.RedisDB,
		FeedsDir:       o.FeedsDir,
		Port:           o.Port,
		APIAccessKey:   o.APIAccessKey,
		WorkerCount:    o.WorkerCount,
		FetchTimeout:   time.Duration(o.FetchTimeout) * time.Second,
		PollTimeout:    time.Duration(o.PollTimeout) * time.Second,
		UserAgent:      o.UserAgent,
		Timezone:       o.Timezone,
		Debug:          o.Debug,
		LogFormat:      o.LogFormat,
		Version:        GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call Options.Build() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
