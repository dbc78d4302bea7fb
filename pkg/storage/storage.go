package storage

import (
	"context"

	"github.com/quotawatch/quotawatch/pkg/model"
)

// Storage defines the persistence layer for run history.
type Storage interface {
	// SaveRun persists a finished run together with all its records.
	SaveRun(ctx context.Context, run *model.Run) error

	// GetRun retrieves a single run with its records by ID.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns returns up to limit run summaries, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Close releases resources.
	Close() error
}
