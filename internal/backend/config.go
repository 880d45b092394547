package backend

import (
	"errors"
	"fmt"
	"time"

	"saldi/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory backend reads it; sqlite seeds an empty database from it.
	SeedFile string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleContiSheet         string
	GoogleMovimentiSheet     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleSheetsCacheTTL     time.Duration

	Location         *time.Location
	ProjectionMonths int
	Now              func() time.Time
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	loc, err := appConfig.Location()
	if err != nil {
		return Config{}, fmt.Errorf("load timezone: %w", err)
	}

	return Config{
		Type:     backendType,
		SeedFile: appConfig.SeedFile,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleContiSheet:         appConfig.GoogleContiSheet,
		GoogleMovimentiSheet:     appConfig.GoogleMovimentiSheet,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleSheetsCacheTTL:     appConfig.GoogleSheetsCacheTTL,

		Location:         loc,
		ProjectionMonths: appConfig.ProjectionMonths,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return errors.New("service account credentials are required for sheets backend")
		}
	}
	if c.ProjectionMonths < 0 {
		return fmt.Errorf("invalid projection horizon: %d", c.ProjectionMonths)
	}
	return nil
}
