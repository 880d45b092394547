package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

var validBackends = []string{BackendMemory, BackendSheets, BackendSQLite}

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string
	SeedFile    string

	// Database
	SQLiteDBPath string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleContiSheet         string
	GoogleMovimentiSheet     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleSheetsCacheTTL     time.Duration

	// Dashboard
	Timezone              string
	DefaultLookbackMonths int
	ProjectionMonths      int
	CatalogCacheTTL       time.Duration

	// Recurring worker
	RecurringInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),
		SeedFile:    getEnv("SEED_FILE", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/saldi.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "saldi"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "ledger_changed"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleContiSheet:         getEnv("GOOGLE_CONTI_SHEET", "Conti"),
		GoogleMovimentiSheet:     getEnv("GOOGLE_MOVIMENTI_SHEET", "Movimenti"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		GoogleSheetsCacheTTL:     getEnvDuration("GOOGLE_SHEETS_CACHE_TTL", 30*time.Second),

		Timezone:              getEnv("TIMEZONE", "Europe/Rome"),
		DefaultLookbackMonths: getEnvInt("DEFAULT_LOOKBACK_MONTHS", 12),
		ProjectionMonths:      getEnvInt("PROJECTION_MONTHS", 12),
		CatalogCacheTTL:       getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),

		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),
	}

	return cfg
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be json or text", c.LogFormat))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			errors = append(errors, fmt.Sprintf("seed file not readable: %s", c.SeedFile))
		}
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets configuration if backend is sheets
	if c.DataBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleContiSheet == "" || c.GoogleMovimentiSheet == "" {
			errors = append(errors, "Google conti and movimenti sheet names are required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.DefaultLookbackMonths < 1 || c.DefaultLookbackMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid default lookback %d: must be between 1 and 120 months", c.DefaultLookbackMonths))
	}
	if c.ProjectionMonths < 0 || c.ProjectionMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid projection horizon %d: must be between 0 and 120 months", c.ProjectionMonths))
	}
	if c.CatalogCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid catalog cache TTL %v: must be at least 1 second", c.CatalogCacheTTL))
	}

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	// Return combined errors
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
