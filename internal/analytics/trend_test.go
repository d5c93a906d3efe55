package analytics

import (
	"testing"
	"time"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSeries(reg *BufferRegistry, deviceID, field string, values []float64) {
	buf := reg.Get(deviceID)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, v := range values {
		buf.Append(models.Reading{
			Timestamp: base.Add(time.Duration(i) * 2 * time.Second),
			Fields:    map[string]float64{field: v},
		})
	}
}

func TestDetectTrends_Rising(t *testing.T) {
	reg := NewBufferRegistry(100)
	seedSeries(reg, "dev-1", models.FieldTemperature, []float64{20, 20.5, 21, 21.5, 22, 22.5, 23, 23.5, 24, 24.5})

	trends := NewTrendDetector(reg).DetectTrends("dev-1", 60)

	require.Contains(t, trends, models.FieldTemperature)
	trend := trends[models.FieldTemperature]
	assert.Equal(t, "rising", trend.Direction)
	assert.InDelta(t, 0.5, trend.Slope, 1e-9)
	assert.Equal(t, 10, trend.Samples)
	// 4.5°C over 18 seconds = 15°C/min.
	assert.InDelta(t, 15.0, trend.ChangePerMinute, 1e-6)
}

func TestDetectTrends_Falling(t *testing.T) {
	reg := NewBufferRegistry(100)
	seedSeries(reg, "dev-1", models.FieldHumidity, []float64{70, 68, 66, 64, 62, 60})

	trends := NewTrendDetector(reg).DetectTrends("dev-1", 60)

	require.Contains(t, trends, models.FieldHumidity)
	assert.Equal(t, "falling", trends[models.FieldHumidity].Direction)
	assert.Negative(t, trends[models.FieldHumidity].ChangePerMinute)
}

func TestDetectTrends_StableWhenRelativeSlopeTiny(t *testing.T) {
	reg := NewBufferRegistry(100)
	seedSeries(reg, "dev-1", models.FieldPH, []float64{6.0, 6.0, 6.0, 6.0, 6.0, 6.0, 6.0, 6.0})

	trends := NewTrendDetector(reg).DetectTrends("dev-1", 60)

	require.Contains(t, trends, models.FieldPH)
	assert.Equal(t, "stable", trends[models.FieldPH].Direction)
}

func TestDetectTrends_RequiresFiveSamples(t *testing.T) {
	reg := NewBufferRegistry(100)
	seedSeries(reg, "dev-1", models.FieldTemperature, []float64{20, 21, 22, 23})

	trends := NewTrendDetector(reg).DetectTrends("dev-1", 60)
	assert.NotContains(t, trends, models.FieldTemperature)
}

func TestDetectTrends_UnknownDeviceIsEmpty(t *testing.T) {
	reg := NewBufferRegistry(100)
	trends := NewTrendDetector(reg).DetectTrends("ghost", 60)
	assert.Empty(t, trends)
}

func TestDetectTrends_WindowLimitsSamples(t *testing.T) {
	reg := NewBufferRegistry(100)
	// 20 flat samples followed by 10 rising ones; a 10-sample window only
	// sees the rise.
	values := make([]float64, 0, 30)
	for i := 0; i < 20; i++ {
		values = append(values, 20)
	}
	for i := 0; i < 10; i++ {
		values = append(values, 20+float64(i))
	}
	seedSeries(reg, "dev-1", models.FieldTemperature, values)

	trends := NewTrendDetector(reg).DetectTrends("dev-1", 10)
	require.Contains(t, trends, models.FieldTemperature)
	assert.Equal(t, 10, trends[models.FieldTemperature].Samples)
	assert.Equal(t, "rising", trends[models.FieldTemperature].Direction)
}

func TestOLSSlope_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, olsSlope([]float64{5}))
	assert.Equal(t, 0.0, olsSlope(nil))
}
