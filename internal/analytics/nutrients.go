package analytics

import (
	"fmt"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

// RangeScore scores a value against an optimal band nested in a critical
// band. Full credit inside [optMin, optMax]; inside the warning band the
// score interpolates linearly but is capped at 70% of max even at its best
// point; outside [critMin, critMax] the score is zero. The 70% cap is a
// deliberate product decision — the warning zone is never rewarded as
// near-optimal.
func RangeScore(value, optMin, optMax, critMin, critMax, maxPoints float64) float64 {
	switch {
	case value >= optMin && value <= optMax:
		return maxPoints
	case value >= critMin && value < optMin:
		frac := (value - critMin) / (optMin - critMin)
		return frac * 0.7 * maxPoints
	case value > optMax && value <= critMax:
		frac := (critMax - value) / (critMax - optMax)
		return frac * 0.7 * maxPoints
	default:
		return 0
	}
}

// ScoreNutrients computes the 0–100 composite nutrient score from pH and EC
// against the resolved variety ranges: up to 50 points each.
func ScoreNutrients(ph, ec float64, ranges models.ResolvedRanges) models.NutrientResult {
	phScore := scoreParameter(ph, ranges.PH)
	ecScore := scoreParameter(ec, ranges.EC)

	result := models.NutrientResult{
		Score:       round3(phScore.Score + ecScore.Score),
		PH:          phScore,
		EC:          ecScore,
		RangeSource: string(ranges.Provenance),
	}

	if phScore.Status != "optimal" {
		result.Recommendations = append(result.Recommendations, phRecommendation(ph, ranges.PH))
	}
	if ecScore.Status != "optimal" {
		result.Recommendations = append(result.Recommendations, ecRecommendation(ec, ranges.EC))
	}
	return result
}

func scoreParameter(value float64, bounds models.RangeBounds) models.ParameterScore {
	const maxPoints = 50.0

	status := "warning"
	if bounds.Contains(value) {
		status = "optimal"
	} else if !bounds.InCritical(value) {
		status = "critical"
	}

	return models.ParameterScore{
		Value:      value,
		Score:      round3(RangeScore(value, bounds.OptimalMin, bounds.OptimalMax, bounds.CriticalMin, bounds.CriticalMax, maxPoints)),
		MaxScore:   maxPoints,
		Status:     status,
		OptimalMin: bounds.OptimalMin,
		OptimalMax: bounds.OptimalMax,
	}
}

func phRecommendation(ph float64, bounds models.RangeBounds) string {
	if ph < bounds.OptimalMin {
		return fmt.Sprintf("pH %.2f is below the optimal %.1f–%.1f range; dose pH-up or reduce acid injection", ph, bounds.OptimalMin, bounds.OptimalMax)
	}
	return fmt.Sprintf("pH %.2f is above the optimal %.1f–%.1f range; dose pH-down", ph, bounds.OptimalMin, bounds.OptimalMax)
}

func ecRecommendation(ec float64, bounds models.RangeBounds) string {
	if ec < bounds.OptimalMin {
		return fmt.Sprintf("EC %.2f is below the optimal %.1f–%.1f range; add nutrient concentrate", ec, bounds.OptimalMin, bounds.OptimalMax)
	}
	return fmt.Sprintf("EC %.2f is above the optimal %.1f–%.1f range; dilute the reservoir with fresh water", ec, bounds.OptimalMin, bounds.OptimalMax)
}
