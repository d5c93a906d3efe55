package analytics

import (
	"testing"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ingestSeries appends history plus the current reading, the same order the
// facade uses: the buffer's newest entry is the reading under analysis.
func ingestSeries(reg *BufferRegistry, deviceID, field string, history []float64, current float64) map[string]float64 {
	seedSeries(reg, deviceID, field, append(append([]float64{}, history...), current))
	return map[string]float64{field: current}
}

func alternating(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}

func repeated(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func anomaliesOfType(anomalies []models.Anomaly, typ string) []models.Anomaly {
	var out []models.Anomaly
	for _, a := range anomalies {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestDetect_SpikeHigh(t *testing.T) {
	reg := NewBufferRegistry(200)
	// Prior distribution: mean 10.1, sample stddev ≈ 0.103.
	current := ingestSeries(reg, "dev-a", models.FieldTemperature, alternating(10.0, 10.2, 20), 11.0)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)

	spikes := anomaliesOfType(anomalies, models.AnomalySpike)
	require.Len(t, spikes, 1)
	assert.Equal(t, models.SeverityHigh, spikes[0].Severity)
	assert.Greater(t, spikes[0].ZScore, 3.5)
	assert.Equal(t, 11.0, spikes[0].Value)
}

func TestDetect_SpikeMedium(t *testing.T) {
	reg := NewBufferRegistry(200)
	// z ≈ 2.9: above the 2.5 trigger, below the 3.5 high threshold.
	current := ingestSeries(reg, "dev-a", models.FieldTemperature, alternating(10.0, 10.2, 20), 10.4)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)

	spikes := anomaliesOfType(anomalies, models.AnomalySpike)
	require.Len(t, spikes, 1)
	assert.Equal(t, models.SeverityMedium, spikes[0].Severity)
}

func TestDetect_RequiresTenPriorSamples(t *testing.T) {
	reg := NewBufferRegistry(200)
	current := ingestSeries(reg, "dev-a", models.FieldTemperature, alternating(10.0, 10.2, 9), 50.0)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)
	assert.Empty(t, anomalies)
}

func TestDetect_ZeroStddevSkipsSpike(t *testing.T) {
	reg := NewBufferRegistry(200)
	current := ingestSeries(reg, "dev-a", models.FieldPH, repeated(6.0, 20), 6.0)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)
	assert.Empty(t, anomaliesOfType(anomalies, models.AnomalySpike))
}

func TestDetect_Flatline(t *testing.T) {
	reg := NewBufferRegistry(200)
	// 59 identical priors + identical current = 60 flat samples.
	current := ingestSeries(reg, "dev-a", models.FieldEC, repeated(1.5, 59), 1.5)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)

	flats := anomaliesOfType(anomalies, models.AnomalyFlatline)
	require.Len(t, flats, 1)
	assert.Equal(t, models.SeverityHigh, flats[0].Severity)
}

func TestDetect_NoFlatlineUnderSixtySamples(t *testing.T) {
	reg := NewBufferRegistry(200)
	current := ingestSeries(reg, "dev-a", models.FieldEC, repeated(1.5, 40), 1.5)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)
	assert.Empty(t, anomaliesOfType(anomalies, models.AnomalyFlatline))
}

func TestDetect_SuddenJump(t *testing.T) {
	reg := NewBufferRegistry(200)
	// 15% step: medium.
	current := ingestSeries(reg, "dev-a", models.FieldWaterLevel, repeated(100, 15), 115)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)
	jumps := anomaliesOfType(anomalies, models.AnomalyJump)
	require.Len(t, jumps, 1)
	assert.Equal(t, models.SeverityMedium, jumps[0].Severity)
	assert.InDelta(t, 15.0, jumps[0].ChangePercent, 1e-9)
}

func TestDetect_SuddenJumpHigh(t *testing.T) {
	reg := NewBufferRegistry(200)
	// 30% step: high.
	current := ingestSeries(reg, "dev-a", models.FieldWaterLevel, repeated(100, 15), 130)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)
	jumps := anomaliesOfType(anomalies, models.AnomalyJump)
	require.Len(t, jumps, 1)
	assert.Equal(t, models.SeverityHigh, jumps[0].Severity)
}

func TestDetect_JumpSkippedWhenPreviousZero(t *testing.T) {
	reg := NewBufferRegistry(200)
	current := ingestSeries(reg, "dev-a", models.FieldWaterLevel, repeated(0, 15), 50)

	anomalies := NewAnomalyDetector(reg).Detect("dev-a", current)
	assert.Empty(t, anomaliesOfType(anomalies, models.AnomalyJump))
}

func TestDetect_DeviceIsolation(t *testing.T) {
	reg := NewBufferRegistry(200)
	detector := NewAnomalyDetector(reg)

	// Device A takes a spike; device B stays normal.
	spiky := ingestSeries(reg, "dev-a", models.FieldTemperature, alternating(10.0, 10.2, 20), 11.0)
	normal := ingestSeries(reg, "dev-b", models.FieldTemperature, alternating(10.0, 10.2, 20), 10.1)

	assert.NotEmpty(t, detector.Detect("dev-a", spiky))
	assert.Empty(t, detector.Detect("dev-b", normal))
}

func TestDetect_UnknownDevice(t *testing.T) {
	reg := NewBufferRegistry(200)
	anomalies := NewAnomalyDetector(reg).Detect("ghost", map[string]float64{models.FieldTemperature: 20})
	assert.Empty(t, anomalies)
}
