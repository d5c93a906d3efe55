package repository

import (
	"context"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

// AlertHistoryRepository persists resolved-alert records. The in-memory
// escalation manager remains the source of truth for active alerts; this is
// durable history for dashboards and audits.
type AlertHistoryRepository interface {
	SaveResolution(ctx context.Context, rec *models.ResolutionRecord) error
	ListResolutions(ctx context.Context, limit int) ([]models.ResolutionRecord, error)
}

// ReadingArchiveRepository is the write-behind archive of raw readings.
type ReadingArchiveRepository interface {
	ArchiveReading(ctx context.Context, deviceID string, r *models.Reading) error
	CountReadings(ctx context.Context, deviceID string) (int64, error)
}

// Repository aggregates all repositories.
type Repository struct {
	Alerts   AlertHistoryRepository
	Readings ReadingArchiveRepository
}
