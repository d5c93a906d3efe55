package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/hydrowatch/hydrowatch-backend/internal/analytics"
	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/hydrowatch/hydrowatch-backend/internal/pkg/metrics"
	"github.com/hydrowatch/hydrowatch-backend/internal/repository"
	"github.com/hydrowatch/hydrowatch-backend/internal/variety"
)

// AnalyticsService is the sensor analytics facade: one reading in, one
// derived-metrics snapshot out. Ingest never returns an error — fields that
// are absent or malformed are skipped, and detectors with too little history
// stay quiet.
type AnalyticsService interface {
	Ingest(ctx context.Context, deviceID string, fields map[string]float64, opts IngestOptions) *models.MetricsSnapshot
	Trends(deviceID string, window int) map[string]models.TrendInfo
	Summary(deviceID string, trendWindow int) *models.DeviceSummary
	Devices() []string
}

// IngestOptions carries optional per-reading context from the caller.
type IngestOptions struct {
	Variety string
	Stage   string
}

type analyticsService struct {
	buffers   *analytics.BufferRegistry
	light     *analytics.LightIntegrator
	anomalies *analytics.AnomalyDetector
	trends    *analytics.TrendDetector
	varieties *variety.Store
	archive   repository.ReadingArchiveRepository // optional; nil disables archiving
	logger    *slog.Logger
	now       func() time.Time
}

// NewAnalyticsService wires the analytics facade. archive may be nil when
// the deployment runs without durable history.
func NewAnalyticsService(
	buffers *analytics.BufferRegistry,
	light *analytics.LightIntegrator,
	anomalies *analytics.AnomalyDetector,
	trends *analytics.TrendDetector,
	varieties *variety.Store,
	archive repository.ReadingArchiveRepository,
	logger *slog.Logger,
) AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &analyticsService{
		buffers:   buffers,
		light:     light,
		anomalies: anomalies,
		trends:    trends,
		varieties: varieties,
		archive:   archive,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *analyticsService) Ingest(ctx context.Context, deviceID string, fields map[string]float64, opts IngestOptions) *models.MetricsSnapshot {
	clean := s.sanitize(deviceID, fields)

	reading := models.Reading{Timestamp: s.now(), Fields: clean}
	s.buffers.Get(deviceID).Append(reading)
	metrics.ReadingsIngestedTotal.WithLabelValues(deviceID).Inc()

	snapshot := &models.MetricsSnapshot{
		DeviceID:  deviceID,
		Timestamp: reading.Timestamp,
	}

	if temp, okT := clean[models.FieldTemperature]; okT {
		if rh, okH := clean[models.FieldHumidity]; okH {
			vpd := analytics.ComputeVPD(temp, rh)
			snapshot.VPD = &vpd
		}
	}

	if lux, ok := clean[models.FieldLight]; ok {
		dli := s.light.Accumulate(deviceID, lux)
		snapshot.DLI = &dli
	}

	if ph, okP := clean[models.FieldPH]; okP {
		if ec, okE := clean[models.FieldEC]; okE {
			ranges := s.varieties.Resolve(opts.Variety, opts.Stage)
			nutrients := analytics.ScoreNutrients(ph, ec, ranges)
			snapshot.Nutrients = &nutrients
		}
	}

	snapshot.Anomalies = s.anomalies.Detect(deviceID, clean)
	for _, a := range snapshot.Anomalies {
		metrics.AnomaliesDetectedTotal.WithLabelValues(a.Type, a.Severity).Inc()
	}

	if s.archive != nil {
		if err := s.archive.ArchiveReading(ctx, deviceID, &reading); err != nil {
			// Archiving is best-effort observability; the snapshot stands.
			s.logger.Warn("failed to archive reading", "device_id", deviceID, "err", err)
		}
	}

	return snapshot
}

func (s *analyticsService) Trends(deviceID string, window int) map[string]models.TrendInfo {
	return s.trends.DetectTrends(deviceID, window)
}

func (s *analyticsService) Summary(deviceID string, trendWindow int) *models.DeviceSummary {
	summary := &models.DeviceSummary{DeviceID: deviceID}

	buf, ok := s.buffers.Lookup(deviceID)
	if !ok {
		return summary
	}
	summary.BufferSize = buf.Len()
	if last, ok := buf.Last(); ok {
		summary.LastReading = &last
	}
	summary.Trends = s.trends.DetectTrends(deviceID, trendWindow)
	return summary
}

func (s *analyticsService) Devices() []string {
	return s.buffers.Devices()
}

// sanitize drops non-finite values so NaN/Inf never reach the detectors.
// Dropped fields are logged and counted, not surfaced as errors.
func (s *analyticsService) sanitize(deviceID string, fields map[string]float64) map[string]float64 {
	clean := make(map[string]float64, len(fields))
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.logger.Warn("dropping malformed sensor field",
				"device_id", deviceID, "field", name, "value", v)
			metrics.FieldsDroppedTotal.WithLabelValues("non_finite").Inc()
			continue
		}
		clean[name] = v
	}
	return clean
}
