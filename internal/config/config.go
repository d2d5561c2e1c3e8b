package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PayloadMode selects where primary book payloads live.
type PayloadMode string

const (
	PayloadModeBlob PayloadMode = "blob" // File bytes stored in the libros table (default)
	PayloadModeDisk PayloadMode = "disk" // File bytes stored under Storage.UploadsDir, path in the table
)

type (
	Config struct {
		HTTP
		Global
		Database
		Storage
		Uploads
		Categories
		Visits
		Tasks
		Sweep
		Metrics
	}

	HTTP struct {
		Port           int32
		Host           string
		TrustedProxies []string
		RequestTimeout time.Duration // Deadline for regular requests
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path     string
		LogLevel string // silent, error, warn, info
	}
	Storage struct {
		PayloadMode PayloadMode
		UploadsDir  string
	}
	Uploads struct {
		MaxBytes  int64         // Ceiling for a whole multipart request
		MaxMemory int64         // Multipart parts above this are buffered to temp files
		Timeout   time.Duration // Deadline for upload requests
	}
	Categories struct {
		CacheTTL time.Duration
	}
	Visits struct {
		CookieName   string
		CookieSecret string // Hex or raw; generated at startup if empty
		CookieMaxAge time.Duration
		SecureCookie bool
		IssueCookies bool // When false, visitors without a cookie are counted by address
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Sweep struct {
		Enabled     bool
		Schedule    string        // Cron format: "30 * * * *" = hourly at :30
		GracePeriod time.Duration // Files younger than this are never swept
	}
	Metrics struct {
		Enabled bool
		Path    string
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 3000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("trusted_proxies", "")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("db_log_level", "warn")

	// Payload storage defaults
	v.SetDefault("payload_mode", string(PayloadModeBlob))
	v.SetDefault("uploads_dir", DefaultUploadsDir)

	// Upload limits
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("upload_max_memory", 32<<20)
	v.SetDefault("upload_timeout", "10m")

	v.SetDefault("category_cache_ttl", "60s")

	// Visit counting defaults
	v.SetDefault("visit_cookie_name", "visitId")
	v.SetDefault("visit_cookie_secret", "")     // Auto-generated if empty
	v.SetDefault("visit_cookie_max_age", "24h") // 1 day
	v.SetDefault("visit_secure_cookie", false)
	v.SetDefault("visit_issue_cookies", true)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Orphan payload sweep
	v.SetDefault("sweep_enabled", true)
	v.SetDefault("sweep_schedule", "30 * * * *")
	v.SetDefault("sweep_grace_period", "1h")

	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_path", "/metrics")

	return &Config{
		HTTP: HTTP{
			Port:           v.GetInt32("PORT"),
			Host:           v.GetString("HOST"),
			TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path:     v.GetString("DATABASE_PATH"),
			LogLevel: v.GetString("DB_LOG_LEVEL"),
		},
		Storage: Storage{
			PayloadMode: PayloadMode(v.GetString("PAYLOAD_MODE")),
			UploadsDir:  v.GetString("UPLOADS_DIR"),
		},
		Uploads: Uploads{
			MaxBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
			MaxMemory: v.GetInt64("UPLOAD_MAX_MEMORY"),
			Timeout:   v.GetDuration("UPLOAD_TIMEOUT"),
		},
		Categories: Categories{
			CacheTTL: v.GetDuration("CATEGORY_CACHE_TTL"),
		},
		Visits: Visits{
			CookieName:   v.GetString("VISIT_COOKIE_NAME"),
			CookieSecret: v.GetString("VISIT_COOKIE_SECRET"),
			CookieMaxAge: v.GetDuration("VISIT_COOKIE_MAX_AGE"),
			SecureCookie: v.GetBool("VISIT_SECURE_COOKIE"),
			IssueCookies: v.GetBool("VISIT_ISSUE_COOKIES"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Sweep: Sweep{
			Enabled:     v.GetBool("SWEEP_ENABLED"),
			Schedule:    v.GetString("SWEEP_SCHEDULE"),
			GracePeriod: v.GetDuration("SWEEP_GRACE_PERIOD"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
	}
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
