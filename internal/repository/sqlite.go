package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the repositories using SQLite (cgo-free
// modernc driver, so the binary stays self-contained).
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) the database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// WAL keeps ingest writes from blocking dashboard reads.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// RunMigrations executes the given migration SQL.
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// SaveResolution appends one resolved-alert record.
func (r *SQLiteRepository) SaveResolution(ctx context.Context, rec *models.ResolutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO alert_resolutions (id, rule_id, sensor, original_value, final_value, first_seen, resolved_at, duration_seconds, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return instrumentQuery("save_resolution", func() error {
		_, err := r.db.ExecContext(ctx, query,
			rec.ID,
			rec.RuleID,
			rec.Sensor,
			rec.OriginalValue,
			rec.FinalValue,
			rec.FirstSeen,
			rec.ResolvedAt,
			rec.Duration.Seconds(),
			rec.Reason,
		)
		return err
	})
}

// ListResolutions returns the most recent resolution records, newest first.
func (r *SQLiteRepository) ListResolutions(ctx context.Context, limit int) ([]models.ResolutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	type row struct {
		ID              string    `db:"id"`
		RuleID          string    `db:"rule_id"`
		Sensor          string    `db:"sensor"`
		OriginalValue   float64   `db:"original_value"`
		FinalValue      float64   `db:"final_value"`
		FirstSeen       time.Time `db:"first_seen"`
		ResolvedAt      time.Time `db:"resolved_at"`
		DurationSeconds float64   `db:"duration_seconds"`
		Reason          string    `db:"reason"`
	}

	var rows []row
	err := instrumentQuery("list_resolutions", func() error {
		return r.db.SelectContext(ctx, &rows,
			`SELECT * FROM alert_resolutions ORDER BY resolved_at DESC LIMIT ?`, limit)
	})
	if err != nil {
		return nil, err
	}

	records := make([]models.ResolutionRecord, 0, len(rows))
	for _, rw := range rows {
		records = append(records, models.ResolutionRecord{
			ID:            rw.ID,
			RuleID:        rw.RuleID,
			Sensor:        rw.Sensor,
			OriginalValue: rw.OriginalValue,
			FinalValue:    rw.FinalValue,
			FirstSeen:     rw.FirstSeen,
			ResolvedAt:    rw.ResolvedAt,
			Duration:      time.Duration(rw.DurationSeconds * float64(time.Second)),
			Reason:        rw.Reason,
		})
	}
	return records, nil
}

// ArchiveReading stores one raw reading; fields are serialized as JSON.
func (r *SQLiteRepository) ArchiveReading(ctx context.Context, deviceID string, reading *models.Reading) error {
	fields, err := json.Marshal(reading.Fields)
	if err != nil {
		return fmt.Errorf("encode reading fields: %w", err)
	}

	query := `
		INSERT INTO readings_archive (id, device_id, recorded_at, fields)
		VALUES (?, ?, ?, ?)
	`

	return instrumentQuery("archive_reading", func() error {
		_, err := r.db.ExecContext(ctx, query, uuid.New().String(), deviceID, reading.Timestamp, string(fields))
		return err
	})
}

// CountReadings returns the number of archived readings for a device.
func (r *SQLiteRepository) CountReadings(ctx context.Context, deviceID string) (int64, error) {
	var count int64
	err := instrumentQuery("count_readings", func() error {
		return r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM readings_archive WHERE device_id = ?`, deviceID)
	})
	return count, err
}
