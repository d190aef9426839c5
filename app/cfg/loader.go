package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./serpwatch.db" description:"Path to the SQLite database file"`

	// Application configuration
	ProjectsDir       string `long:"projects-dir" env:"PROJECTS_DIR" default:"./projects" description:"Directory containing project configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for task processing"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	SignificantChange int    `long:"significant-change" env:"SIGNIFICANT_CHANGE" default:"5" description:"Position delta treated as a significant ranking change"`
	MetricsBatchSize  int    `long:"metrics-batch-size" env:"METRICS_BATCH_SIZE" default:"100" description:"Keyword metrics request batch size"`

	// External API endpoints
	SearchConsoleURL string `long:"search-console-url" env:"SEARCH_CONSOLE_URL" default:"https://www.googleapis.com/webmasters/v3" description:"Search analytics API base URL"`
	AdsMetricsURL    string `long:"ads-metrics-url" env:"ADS_METRICS_URL" default:"https://googleads.googleapis.com/v17" description:"Keyword metrics API base URL"`
	PageSpeedURL     string `long:"pagespeed-url" env:"PAGESPEED_URL" default:"https://www.googleapis.com/pagespeedonline/v5" description:"PageSpeed Insights API base URL"`
	GeminiURL        string `long:"gemini-url" env:"GEMINI_URL" default:"https://generativelanguage.googleapis.com/v1beta" description:"AI analysis API base URL"`

	// SMTP delivery
	SMTPHost string `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host for notification delivery (optional)"`
	SMTPPort string `long:"smtp-port" env:"SMTP_PORT" default:"587" description:"SMTP port"`
	SMTPFrom string `long:"smtp-from" env:"SMTP_FROM" default:"serpwatch@localhost" description:"From address for notification e-mails"`
	SMTPUser string `long:"smtp-user" env:"SMTP_USER" description:"SMTP username (optional)"`
	SMTPPass string `long:"smtp-pass" env:"SMTP_PASS" description:"SMTP password (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"SERP Watch/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for schedules and timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// Optional .env file; flags and real environment take precedence
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		ProjectsDir:       raw.ProjectsDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		APIAccessKey:      raw.APIAccessKey,
		SignificantChange: raw.SignificantChange,
		MetricsBatchSize:  raw.MetricsBatchSize,
		SearchConsoleURL:  raw.SearchConsoleURL,
		AdsMetricsURL:     raw.AdsMetricsURL,
		PageSpeedURL:      raw.PageSpeedURL,
		GeminiURL:         raw.GeminiURL,
		SMTPHost:          raw.SMTPHost,
		SMTPPort:          raw.SMTPPort,
		SMTPFrom:          raw.SMTPFrom,
		SMTPUser:          raw.SMTPUser,
		SMTPPass:          raw.SMTPPass,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
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

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
