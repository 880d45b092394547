package backend

import (
	"context"

	"saldi/internal/cache"
	"saldi/internal/ledger"
	"saldi/internal/schedule"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger a backend exposes. Optional capabilities
// are nil when the backend lacks them.
type BackendResult struct {
	// Store reads the ledger, including projected recurring occurrences
	// when the backend keeps recurrences.
	Store ledger.Store

	Writer      ledger.Writer
	Recurrences schedule.RecurrenceStore

	// Cleaners are backend caches to register with a cache.Manager.
	Cleaners []cache.Cleaner

	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// ReadOnly reports whether the backend rejects writes.
func (r *BackendResult) ReadOnly() bool {
	return r.Writer == nil
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
