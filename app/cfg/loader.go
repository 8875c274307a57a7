package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Deployment
	Role  string `long:"role" env:"ROLE" default:"all" choice:"all" choice:"api" choice:"worker" description:"Process role: gateway, workers, or both"`
	Store string `long:"store" env:"STORE" default:"redis" choice:"redis" choice:"sqlite" description:"Job store backend"`

	// Storage and broker
	RedisURL    string `long:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379/0" description:"Redis URL for the job store and queue"`
	RedisPrefix string `long:"redis-prefix" env:"REDIS_PREFIX" default:"wpx" description:"Prefix for Redis keys and streams"`
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./wp-extractor.db" description:"SQLite database file (store=sqlite)"`

	// Worker pool
	WorkerCount       int           `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of concurrent extraction workers"`
	MaxJobsPerWorker  int           `long:"max-jobs-per-worker" env:"MAX_JOBS_PER_WORKER" default:"50" description:"Jobs a worker runs before it is replaced"`
	SoftTimeLimit     time.Duration `long:"soft-time-limit" env:"SOFT_TIME_LIMIT" default:"540s" description:"Deadline after which a running extraction is interrupted"`
	HardTimeLimit     time.Duration `long:"hard-time-limit" env:"HARD_TIME_LIMIT" default:"600s" description:"Deadline after which a worker abandons its job"`
	VisibilityTimeout time.Duration `long:"visibility-timeout" env:"VISIBILITY_TIMEOUT" default:"3600s" description:"Idle time before an unacknowledged job is redelivered"`
	MaxDeliveries     int64         `long:"max-deliveries" env:"MAX_DELIVERIES" default:"3" description:"Deliveries of a job before it is failed"`
	ResultTTL         time.Duration `long:"result-ttl" env:"RESULT_TTL" default:"3600s" description:"Retention of finished jobs"`
	PendingTTL        time.Duration `long:"pending-ttl" env:"PENDING_TTL" default:"24h" description:"Retention of jobs that never finish"`

	// WordPress upstream
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout of a single WordPress page request"`
	PerPage      int           `long:"per-page" env:"PER_PAGE" default:"100" description:"Posts requested per page (1-100)"`
	UserAgent    string        `long:"user-agent" env:"USER_AGENT" default:"WP Extractor/1.0" description:"User agent string for HTTP requests"`
	SitesDir     string        `long:"sites-dir" env:"SITES_DIR" description:"Directory containing site preset files (optional)"`

	// HTTP gateway
	Port             string        `long:"port" env:"PORT" default:"5000" description:"HTTP server port"`
	BaseUrl          string        `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://extract.example.com)"`
	APIAccessKey     string        `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	HTTPWriteTimeout time.Duration `long:"http-write-timeout" env:"HTTP_WRITE_TIMEOUT" default:"300s" description:"Write timeout of HTTP responses"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	cfg, err := parse(os.Args[1:])
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Role:              Role(raw.Role),
		Store:             StoreKind(raw.Store),
		RedisURL:          raw.RedisURL,
		RedisPrefix:       raw.RedisPrefix,
		DBPath:            raw.DBPath,
		WorkerCount:       raw.WorkerCount,
		MaxJobsPerWorker:  raw.MaxJobsPerWorker,
		SoftTimeLimit:     raw.SoftTimeLimit,
		HardTimeLimit:     raw.HardTimeLimit,
		VisibilityTimeout: raw.VisibilityTimeout,
		MaxDeliveries:     raw.MaxDeliveries,
		ResultTTL:         raw.ResultTTL,
		PendingTTL:        raw.PendingTTL,
		FetchTimeout:      raw.FetchTimeout,
		PerPage:           raw.PerPage,
		UserAgent:         raw.UserAgent,
		SitesDir:          raw.SitesDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		APIAccessKey:      raw.APIAccessKey,
		HTTPWriteTimeout:  raw.HTTPWriteTimeout,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.MaxJobsPerWorker < 1 {
		return fmt.Errorf("max jobs per worker must be at least 1, got %d", cfg.MaxJobsPerWorker)
	}
	if cfg.PerPage < 1 || cfg.PerPage > 100 {
		return fmt.Errorf("per page must be between 1 and 100, got %d", cfg.PerPage)
	}
	if cfg.SoftTimeLimit <= 0 || cfg.HardTimeLimit < cfg.SoftTimeLimit {
		return fmt.Errorf("hard time limit (%s) must not be shorter than soft time limit (%s)", cfg.HardTimeLimit, cfg.SoftTimeLimit)
	}
	if cfg.VisibilityTimeout <= cfg.HardTimeLimit {
		return fmt.Errorf("visibility timeout (%s) must be longer than hard time limit (%s)", cfg.VisibilityTimeout, cfg.HardTimeLimit)
	}
	if cfg.MaxDeliveries < 1 {
		return fmt.Errorf("max deliveries must be at least 1, got %d", cfg.MaxDeliveries)
	}
	if cfg.Store == StoreSQLite && cfg.Role != RoleAll {
		return fmt.Errorf("store %q requires role %q: the in-process queue cannot be shared", cfg.Store, RoleAll)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
