package analytics

import (
	"math"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

const (
	// DefaultTrendWindow is the number of trailing samples the detector
	// regresses over when the caller does not specify a window.
	DefaultTrendWindow = 60

	// trendMinSamples: fewer samples than this and the slope is noise.
	trendMinSamples = 5

	// relativeSlopeStable: |slope|/|mean| below this classifies as stable.
	relativeSlopeStable = 0.001
)

// TrendDetector classifies per-field direction over a sliding window using
// an ordinary least-squares slope of value vs. sample index.
type TrendDetector struct {
	buffers *BufferRegistry
}

// NewTrendDetector creates a detector reading from the given registry.
func NewTrendDetector(buffers *BufferRegistry) *TrendDetector {
	return &TrendDetector{buffers: buffers}
}

// DetectTrends computes trend info for every field present in the device's
// trailing window. Fields with fewer than 5 samples are omitted; an unknown
// device yields an empty map.
func (d *TrendDetector) DetectTrends(deviceID string, window int) map[string]models.TrendInfo {
	trends := make(map[string]models.TrendInfo)

	buf, ok := d.buffers.Lookup(deviceID)
	if !ok {
		return trends
	}
	if window <= 0 {
		window = DefaultTrendWindow
	}

	readings := buf.Snapshot()
	if len(readings) > window {
		readings = readings[len(readings)-window:]
	}

	for _, field := range fieldsPresent(readings) {
		values, stamps := FieldSeries(readings, field)
		if len(values) < trendMinSamples {
			continue
		}
		trends[field] = trendForSeries(field, values, stamps)
	}
	return trends
}

func trendForSeries(field string, values []float64, stamps []int64) models.TrendInfo {
	slope := olsSlope(values)

	mean := meanOf(values)
	relative := math.Abs(slope)
	if mean != 0 {
		relative = math.Abs(slope) / math.Abs(mean)
	}

	direction := "stable"
	if relative >= relativeSlopeStable {
		if slope > 0 {
			direction = "rising"
		} else {
			direction = "falling"
		}
	}

	// Absolute change rate from first/last timestamps. Epsilon floor guards
	// same-timestamp samples.
	minutes := float64(stamps[len(stamps)-1]-stamps[0]) / float64(60*1e9)
	if minutes < 1e-9 {
		minutes = 1e-9
	}
	change := (values[len(values)-1] - values[0]) / minutes

	return models.TrendInfo{
		Field:           field,
		Direction:       direction,
		Slope:           slope,
		ChangePerMinute: change,
		Samples:         len(values),
	}
}

// olsSlope fits value = a + b*index and returns b.
func olsSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func fieldsPresent(readings []models.Reading) []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, r := range readings {
		for f := range r.Fields {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				fields = append(fields, f)
			}
		}
	}
	return fields
}
