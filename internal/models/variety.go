package models

// RangeBounds is an optimal band nested inside a wider critical band for one
// numeric growing parameter.
type RangeBounds struct {
	OptimalMin  float64 `json:"optimal_min" yaml:"optimal_min"`
	OptimalMax  float64 `json:"optimal_max" yaml:"optimal_max"`
	CriticalMin float64 `json:"critical_min" yaml:"critical_min"`
	CriticalMax float64 `json:"critical_max" yaml:"critical_max"`
}

// Contains reports whether v sits inside the optimal band.
func (b RangeBounds) Contains(v float64) bool {
	return v >= b.OptimalMin && v <= b.OptimalMax
}

// InCritical reports whether v sits inside the critical (outer) band.
func (b RangeBounds) InCritical(v float64) bool {
	return v >= b.CriticalMin && v <= b.CriticalMax
}

// StageOverride carries stage-specific bound overrides for a variety.
// Only EC varies meaningfully by growth stage in practice; pH stays put.
type StageOverride struct {
	EC *RangeBounds `json:"ec,omitempty" yaml:"ec,omitempty"`
}

// VarietyProfile is the per-variety optimal/critical configuration loaded
// from the variety store.
type VarietyProfile struct {
	Name   string                   `json:"name" yaml:"name"`
	PH     RangeBounds              `json:"ph" yaml:"ph"`
	EC     RangeBounds              `json:"ec" yaml:"ec"`
	Stages map[string]StageOverride `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// RangeProvenance says where a resolved range actually came from, so callers
// and tests can tell "used real data" apart from "used a safe default".
type RangeProvenance string

const (
	ProvenanceVarietyStage RangeProvenance = "variety_stage"
	ProvenanceVariety      RangeProvenance = "variety"
	ProvenanceGeneric      RangeProvenance = "generic_default"
)

// ResolvedRanges is the outcome of a variety/stage lookup: the bounds to
// score against plus their provenance.
type ResolvedRanges struct {
	Variety    string          `json:"variety,omitempty"`
	Stage      string          `json:"stage,omitempty"`
	PH         RangeBounds     `json:"ph"`
	EC         RangeBounds     `json:"ec"`
	Provenance RangeProvenance `json:"provenance"`
}
