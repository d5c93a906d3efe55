package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

// Anomaly detector tuning. Thresholds follow the grower-facing calibration:
// 2.5σ is worth a look, 3.5σ is a real excursion.
const (
	anomalyMinSamples = 10

	zScoreMedium = 2.5
	zScoreHigh   = 3.5

	flatlineWindow = 60

	jumpPercentTrigger = 10.0
	jumpPercentHigh    = 25.0
)

// AnomalyDetector scans a device's rolling buffer for spikes, flatlines and
// sudden jumps. The three checks are independent and may all fire for the
// same field on the same reading.
type AnomalyDetector struct {
	buffers *BufferRegistry
	now     func() time.Time
}

// NewAnomalyDetector creates a detector reading from the given registry.
func NewAnomalyDetector(buffers *BufferRegistry) *AnomalyDetector {
	return &AnomalyDetector{buffers: buffers, now: time.Now}
}

// Detect checks the current reading's fields against the device's buffer
// history. The buffer is expected to already contain the current reading as
// its newest entry (ingestion appends before analyzing); history for the
// statistical checks excludes it. Fewer than 10 prior samples for a field
// yields no anomalies for that field.
func (d *AnomalyDetector) Detect(deviceID string, current map[string]float64) []models.Anomaly {
	var anomalies []models.Anomaly

	buf, ok := d.buffers.Lookup(deviceID)
	if !ok {
		return anomalies
	}

	readings := buf.Snapshot()
	if len(readings) < 2 {
		return anomalies
	}
	history := readings[:len(readings)-1]
	detectedAt := d.now()

	for field, value := range current {
		prior, _ := FieldSeries(history, field)
		if len(prior) < anomalyMinSamples {
			continue
		}

		if a := checkSpike(field, value, prior); a != nil {
			a.DetectedAt = detectedAt
			anomalies = append(anomalies, *a)
		}
		if a := checkFlatline(field, value, prior); a != nil {
			a.DetectedAt = detectedAt
			anomalies = append(anomalies, *a)
		}
		if a := checkJump(field, value, prior); a != nil {
			a.DetectedAt = detectedAt
			anomalies = append(anomalies, *a)
		}
	}
	return anomalies
}

// checkSpike flags the current value when it lies far outside the trailing
// distribution. Sample stddev (n−1); a zero stddev is skipped — that case
// belongs to the flatline check.
func checkSpike(field string, value float64, prior []float64) *models.Anomaly {
	mean := meanOf(prior)
	sd := sampleStddev(prior, mean)
	if sd == 0 {
		return nil
	}

	z := math.Abs(value-mean) / sd
	if z < zScoreMedium {
		return nil
	}

	severity := models.SeverityMedium
	if z >= zScoreHigh {
		severity = models.SeverityHigh
	}
	return &models.Anomaly{
		Field:    field,
		Type:     models.AnomalySpike,
		Severity: severity,
		Value:    value,
		ZScore:   round3(z),
		Message:  fmt.Sprintf("%s spiked to %.2f (%.1fσ from trailing mean %.2f)", field, value, z, mean),
	}
}

// checkFlatline flags a stuck sensor: the last 60 values (including the
// current one) bit-for-bit identical.
func checkFlatline(field string, value float64, prior []float64) *models.Anomaly {
	if len(prior) < flatlineWindow-1 {
		return nil
	}
	recent := prior[len(prior)-(flatlineWindow-1):]
	for _, v := range recent {
		if v != value {
			return nil
		}
	}
	return &models.Anomaly{
		Field:    field,
		Type:     models.AnomalyFlatline,
		Severity: models.SeverityHigh,
		Value:    value,
		Message:  fmt.Sprintf("%s has been flat at %.2f for the last %d samples; sensor may be stuck", field, value, flatlineWindow),
	}
}

// checkJump flags a >10% step change against the previous sample. Skipped
// when the previous value is zero.
func checkJump(field string, value float64, prior []float64) *models.Anomaly {
	prev := prior[len(prior)-1]
	if prev == 0 {
		return nil
	}

	pct := math.Abs(value-prev) / math.Abs(prev) * 100
	if pct <= jumpPercentTrigger {
		return nil
	}

	severity := models.SeverityMedium
	if pct > jumpPercentHigh {
		severity = models.SeverityHigh
	}
	return &models.Anomaly{
		Field:         field,
		Type:          models.AnomalyJump,
		Severity:      severity,
		Value:         value,
		ChangePercent: round3(pct),
		Message:       fmt.Sprintf("%s jumped %.1f%% in one sample (%.2f → %.2f)", field, pct, prev, value),
	}
}

// sampleStddev uses the n−1 denominator.
func sampleStddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
