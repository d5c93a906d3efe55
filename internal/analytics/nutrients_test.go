package analytics

import (
	"testing"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRangeScore_Boundaries(t *testing.T) {
	// Full credit exactly at the optimal boundary.
	assert.Equal(t, 50.0, RangeScore(20, 20, 24, 15, 30, 50))
	assert.Equal(t, 50.0, RangeScore(24, 20, 24, 15, 30, 50))
	assert.Equal(t, 50.0, RangeScore(22, 20, 24, 15, 30, 50))

	// Zero credit at the critical boundary.
	assert.Equal(t, 0.0, RangeScore(15, 20, 24, 15, 30, 50))

	// Outside the critical band.
	assert.Equal(t, 0.0, RangeScore(14, 20, 24, 15, 30, 50))
	assert.Equal(t, 0.0, RangeScore(31, 20, 24, 15, 30, 50))
}

func TestRangeScore_WarningBandCappedAt70Percent(t *testing.T) {
	// Anywhere strictly inside the warning band scores between 0 and 0.7*max.
	for _, v := range []float64{15.5, 17.5, 19.9} {
		score := RangeScore(v, 20, 24, 15, 30, 50)
		assert.Greater(t, score, 0.0, "value %v", v)
		assert.Less(t, score, 0.7*50, "value %v", v)
	}

	// Midpoint of the lower warning band: half of the 70%-capped credit.
	assert.InDelta(t, 17.5, RangeScore(17.5, 20, 24, 15, 30, 50), 1e-9)
	// Upper warning band interpolates from critMax back to optMax.
	assert.InDelta(t, 17.5, RangeScore(27, 20, 24, 15, 30, 50), 1e-9)
}

func genericRanges() models.ResolvedRanges {
	return models.ResolvedRanges{
		PH:         models.RangeBounds{OptimalMin: 5.8, OptimalMax: 6.5, CriticalMin: 5.5, CriticalMax: 7.0},
		EC:         models.RangeBounds{OptimalMin: 1.2, OptimalMax: 2.0, CriticalMin: 0.8, CriticalMax: 2.5},
		Provenance: models.ProvenanceGeneric,
	}
}

func TestScoreNutrients_OptimalIsFullScore(t *testing.T) {
	result := ScoreNutrients(6.0, 1.5, genericRanges())

	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, "optimal", result.PH.Status)
	assert.Equal(t, "optimal", result.EC.Status)
	assert.Empty(t, result.Recommendations)
	assert.Equal(t, string(models.ProvenanceGeneric), result.RangeSource)
}

func TestScoreNutrients_WarningProducesRecommendation(t *testing.T) {
	result := ScoreNutrients(5.6, 1.5, genericRanges())

	assert.Equal(t, "warning", result.PH.Status)
	assert.Equal(t, "optimal", result.EC.Status)
	assert.Len(t, result.Recommendations, 1)
	assert.Contains(t, result.Recommendations[0], "pH")
	assert.Less(t, result.Score, 100.0)
}

func TestScoreNutrients_CriticalStatus(t *testing.T) {
	result := ScoreNutrients(4.9, 3.0, genericRanges())

	assert.Equal(t, "critical", result.PH.Status)
	assert.Equal(t, "critical", result.EC.Status)
	assert.Equal(t, 0.0, result.Score)
	assert.Len(t, result.Recommendations, 2)
}
