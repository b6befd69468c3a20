package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "despesas/internal/log"
	"despesas/internal/schedule"
)

// Export backends.
const (
	ExportMemory = "memory"
	ExportSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port           string
	RequestTimeout time.Duration
	LogLevel       string

	// Database
	SQLiteDBPath string

	// AMQP; an empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth; an empty secret disables bearer verification
	JWTSecret string

	RateLimitPerMinute int

	// Month statement cache
	CacheTTL  time.Duration
	CacheSize int

	// Schedule generation
	RecurrenceMonths     int
	DayOverflow          string
	InstallmentRemainder string

	// Export worker
	ExportBackend            string
	ExportResyncInterval     time.Duration
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	// WorkerMetricsPort serves /metrics from the worker; empty disables it
	WorkerMetricsPort        string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 7*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/despesas.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "despesas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "schedule_events"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 100),

		RecurrenceMonths:     getEnvInt("SCHEDULE_RECURRENCE_MONTHS", schedule.DefaultHorizon),
		DayOverflow:          getEnv("SCHEDULE_DAY_OVERFLOW", "clamp"),
		InstallmentRemainder: getEnv("SCHEDULE_INSTALLMENT_REMAINDER", "rounded"),

		ExportBackend:            getEnv("EXPORT_BACKEND", ExportMemory),
		ExportResyncInterval:     getEnvDuration("EXPORT_RESYNC_INTERVAL", 15*time.Minute),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Cronograma"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		WorkerMetricsPort:        getEnv("WORKER_METRICS_PORT", ""),
	}
}

// Generator returns the schedule generator the configured policies select.
func (c *Config) Generator() (schedule.Generator, error) {
	overflow, err := schedule.ParseDayOverflow(c.DayOverflow)
	if err != nil {
		return schedule.Generator{}, err
	}
	remainder, err := schedule.ParseRemainderPolicy(c.InstallmentRemainder)
	if err != nil {
		return schedule.Generator{}, err
	}
	return schedule.Generator{
		Horizon:   c.RecurrenceMonths,
		Overflow:  overflow,
		Remainder: remainder,
	}, nil
}

// Validate validates the configuration and returns every problem found in
// one error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.WorkerMetricsPort != "" {
		if port, err := strconv.Atoi(c.WorkerMetricsPort); err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid WORKER_METRICS_PORT '%s': must be between 1 and 65535", c.WorkerMetricsPort))
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid LOG_LEVEL '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.RequestTimeout < 100*time.Millisecond || c.RequestTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be between 100ms and 5m", c.RequestTimeout))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.RecurrenceMonths < 1 || c.RecurrenceMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid recurrence horizon %d: must be between 1 and 120 months", c.RecurrenceMonths))
	}
	if _, err := schedule.ParseDayOverflow(c.DayOverflow); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := schedule.ParseRemainderPolicy(c.InstallmentRemainder); err != nil {
		errors = append(errors, err.Error())
	}

	switch c.ExportBackend {
	case ExportMemory:
	case ExportSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets export")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets export")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid export backend '%s': must be one of [memory sheets]", c.ExportBackend))
	}

	if c.ExportResyncInterval < time.Second || c.ExportResyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export resync interval %v: must be between 1 second and 24 hours", c.ExportResyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
