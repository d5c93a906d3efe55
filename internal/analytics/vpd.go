package analytics

import (
	"math"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

// VPD classification bands (kPa). The optimal band is what the dashboard
// renders as the target zone.
const (
	vpdOptimalMin = 0.8
	vpdOptimalMax = 1.2
)

// ComputeVPD calculates vapor pressure deficit from air temperature (°C) and
// relative humidity (%) using the Tetens approximation for saturation vapor
// pressure. The result is rounded to 3 decimals.
func ComputeVPD(tempC, relHumidity float64) models.VPDResult {
	svp := 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
	vpd := svp * (1 - relHumidity/100)
	vpd = math.Round(vpd*1000) / 1000

	status, risk := classifyVPD(vpd)
	return models.VPDResult{
		VPD:        vpd,
		SVP:        math.Round(svp*1000) / 1000,
		Status:     status,
		Risk:       risk,
		OptimalMin: vpdOptimalMin,
		OptimalMax: vpdOptimalMax,
	}
}

func classifyVPD(vpd float64) (status, risk string) {
	switch {
	case vpd < 0.4:
		return "too_low", "transpiration nearly stopped; high risk of calcium deficiency and fungal disease"
	case vpd < vpdOptimalMin:
		return "low", "slow transpiration; watch for tip burn and soft growth"
	case vpd <= vpdOptimalMax:
		return "optimal", ""
	case vpd <= 1.6:
		return "high", "elevated transpiration; plants may close stomata and slow growth"
	default:
		return "too_high", "severe water stress; wilting likely without intervention"
	}
}
