package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ProjectsDir       string
	Port              string
	WorkerCount       int
	APIAccessKey      string
	SignificantChange int
	MetricsBatchSize  int

	// External API endpoints (overridable for proxies and tests)
	SearchConsoleURL string
	AdsMetricsURL    string
	PageSpeedURL     string
	GeminiURL        string

	// SMTP delivery (optional; deliveries are logged when host is unset)
	SMTPHost string
	SMTPPort string
	SMTPFrom string
	SMTPUser string
	SMTPPass string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
