package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

const (
	// LuxToPPFD is the empirical conversion factor for the white LED spectrum
	// used across the grow sites (lux → µmol/m²/s).
	LuxToPPFD = 0.0185

	// assumedPhotoperiodHours drives the full-day DLI projection.
	assumedPhotoperiodHours = 16.0
)

// dailyLight tracks one device's photon accumulation for the current
// calendar day only. Rolls over (resets) when the observed date changes.
type dailyLight struct {
	date        string // YYYY-MM-DD
	accumulated float64 // µmol/m²
	lastPPFD    float64
	lastSample  time.Time
	firstSample time.Time
}

// LightIntegrator accumulates daily light integral per device. Like the
// buffer registry it is process-lifetime state keyed by device id, built at
// the composition root.
type LightIntegrator struct {
	mu   sync.Mutex
	days map[string]*dailyLight
	now  func() time.Time
}

// NewLightIntegrator creates an empty integrator.
func NewLightIntegrator() *LightIntegrator {
	return &LightIntegrator{
		days: make(map[string]*dailyLight),
		now:  time.Now,
	}
}

// Accumulate folds one lux reading into the device's daily total using
// trapezoidal integration over the seconds elapsed since the previous light
// sample, and returns the current DLI state.
func (li *LightIntegrator) Accumulate(deviceID string, lux float64) models.DLIResult {
	li.mu.Lock()
	defer li.mu.Unlock()

	now := li.now()
	today := now.Format("2006-01-02")
	ppfd := lux * LuxToPPFD

	day, ok := li.days[deviceID]
	if !ok || day.date != today {
		day = &dailyLight{date: today, firstSample: now}
		li.days[deviceID] = day
	} else {
		elapsed := now.Sub(day.lastSample).Seconds()
		if elapsed > 0 {
			day.accumulated += (day.lastPPFD + ppfd) / 2 * elapsed
		}
	}
	day.lastPPFD = ppfd
	day.lastSample = now

	dli := day.accumulated / 1e6 // µmol → mol
	hours := now.Sub(day.firstSample).Hours()

	projected := 0.0
	if hours > 0 {
		projected = dli * (assumedPhotoperiodHours / hours)
	}

	return models.DLIResult{
		DLI:          round3(dli),
		ProjectedDLI: round3(projected),
		PPFD:         round3(ppfd),
		HoursElapsed: round3(hours),
		Status:       classifyDLI(dli),
	}
}

func classifyDLI(dli float64) string {
	switch {
	case dli < 6:
		return "very_low"
	case dli < 12:
		return "low"
	case dli <= 20:
		return "optimal"
	case dli <= 30:
		return "high"
	default:
		return "too_high"
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
