package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "despesas/internal/sheets/google"
	"despesas/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new exporter factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateExporter validates config and builds the exporter it names.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*ExporterResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsExporter(ctx, config)
	case MemoryBackend:
		return f.createMemoryExporter()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsExporter(ctx context.Context, config Config) (*ExporterResult, error) {
	client, err := gsheet.NewFromOptions(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets exporter",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &ExporterResult{
		Exporter: client,
		Cleanup:  nil, // No cleanup needed for sheets exporter
	}, nil
}

func (f *DefaultFactory) createMemoryExporter() (*ExporterResult, error) {
	f.logger.Info("Initialized memory exporter - schedules are kept in process only")
	return &ExporterResult{
		Exporter: memory.New(),
		Cleanup:  nil,
	}, nil
}
