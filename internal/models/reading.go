package models

import "time"

// Sensor field names used throughout the analytics pipeline. Ingestion accepts
// arbitrary field names; these are the ones the derived-metric calculators and
// default alert rules know about.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldPH          = "ph"
	FieldEC          = "ec"
	FieldWaterLevel  = "water_level"
	FieldLight       = "light"
)

// Reading is one timestamped sensor sample for a device. Fields is a sparse
// map — a payload only carries the sensors that reported this interval.
// Readings are immutable once appended to a buffer.
type Reading struct {
	Timestamp time.Time          `json:"timestamp"`
	Fields    map[string]float64 `json:"fields"`
}

// Value returns the named field and whether it was present in this reading.
func (r Reading) Value(field string) (float64, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// VPDResult is the vapor pressure deficit computed from one reading.
type VPDResult struct {
	VPD        float64 `json:"vpd"` // kPa, rounded to 3 decimals
	SVP        float64 `json:"svp"` // saturation vapor pressure, kPa
	Status     string  `json:"status"`
	Risk       string  `json:"risk,omitempty"`
	OptimalMin float64 `json:"optimal_min"`
	OptimalMax float64 `json:"optimal_max"`
}

// DLIResult is the daily light integral accumulated so far today for a device.
type DLIResult struct {
	DLI          float64 `json:"dli"`           // mol/m²/day accumulated so far
	ProjectedDLI float64 `json:"projected_dli"` // extrapolated full-day total
	PPFD         float64 `json:"ppfd"`          // µmol/m²/s from the latest sample
	HoursElapsed float64 `json:"hours_elapsed"`
	Status       string  `json:"status"`
}

// ParameterScore is the scored state of a single nutrient parameter (pH or EC).
type ParameterScore struct {
	Value      float64 `json:"value"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Status     string  `json:"status"` // optimal | warning | critical
	OptimalMin float64 `json:"optimal_min"`
	OptimalMax float64 `json:"optimal_max"`
}

// NutrientResult is the composite pH+EC nutrient score for one reading.
type NutrientResult struct {
	Score           float64        `json:"score"` // 0–100
	PH              ParameterScore `json:"ph"`
	EC              ParameterScore `json:"ec"`
	Recommendations []string       `json:"recommendations,omitempty"`
	RangeSource     string         `json:"range_source"` // provenance of the bounds used
}

// TrendInfo describes the direction of one sensor field over a trailing window.
type TrendInfo struct {
	Field           string  `json:"field"`
	Direction       string  `json:"direction"` // rising | falling | stable
	Slope           float64 `json:"slope"`
	ChangePerMinute float64 `json:"change_per_minute"`
	Samples         int     `json:"samples"`
}

// Anomaly types and severities reported by the anomaly detector.
const (
	AnomalySpike    = "spike"
	AnomalyFlatline = "flatline"
	AnomalyJump     = "sudden_jump"

	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Anomaly is one detected irregularity in a device's sensor stream.
// The three detector checks are independent; a single reading can carry
// several anomalies for the same field.
type Anomaly struct {
	Field         string    `json:"field"`
	Type          string    `json:"type"`
	Severity      string    `json:"severity"`
	Value         float64   `json:"value"`
	ZScore        float64   `json:"z_score,omitempty"`
	ChangePercent float64   `json:"change_percent,omitempty"`
	Message       string    `json:"message"`
	DetectedAt    time.Time `json:"detected_at"`
}

// MetricsSnapshot is what ingestion returns for one reading: whichever
// derived metrics could be computed from the fields present. Absent fields
// simply leave their metric nil — ingestion never errors.
type MetricsSnapshot struct {
	DeviceID  string          `json:"device_id"`
	Timestamp time.Time       `json:"timestamp"`
	VPD       *VPDResult      `json:"vpd,omitempty"`
	DLI       *DLIResult      `json:"dli,omitempty"`
	Nutrients *NutrientResult `json:"nutrients,omitempty"`
	Anomalies []Anomaly       `json:"anomalies,omitempty"`
}

// DeviceSummary is the dashboard view of one device's recent state.
type DeviceSummary struct {
	DeviceID    string               `json:"device_id"`
	BufferSize  int                  `json:"buffer_size"`
	LastReading *Reading             `json:"last_reading,omitempty"`
	Trends      map[string]TrendInfo `json:"trends,omitempty"`
}
