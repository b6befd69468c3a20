package backend

import (
	"context"

	"despesas/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ExporterResult contains the exporter instance and optional cleanup function
type ExporterResult struct {
	Exporter sheets.ScheduleExporter
	Cleanup  CleanupFunc
}

// Factory creates schedule exporters based on configuration
type Factory interface {
	CreateExporter(ctx context.Context, config Config) (*ExporterResult, error)
}

// Config holds configuration for exporter creation
type Config struct {
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType names where exported schedules go.
type BackendType string

const (
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
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
