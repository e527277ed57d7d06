// Package corner implements the corner detector (C4): Savitzky-Golay
// smoothing of the speed trace followed by apex/entry/exit segmentation,
// merging, false-positive filtering, and type classification.
package corner

// TrackType selects a detection preset.
type TrackType string

const (
	TrackRoad   TrackType = "road"
	TrackStreet TrackType = "street"
	TrackOval   TrackType = "oval"
)

// Preset is a fixed, complete set of detection thresholds. Unlike the
// Analyser's own Options (which follow the pointer-optional-override
// pattern), presets are a closed enumeration, so every field here is
// required — there is no partial-preset concept.
type Preset struct {
	MinCornerSpeedDrop float64 // m/s
	ApexSpeedCeiling   float64 // m/s
	BrakeThreshold     float64
	ThrottleThreshold  float64
	MergeGapM          float64
}

// Presets holds the fixed table from §4.4. The road preset's
// MinCornerSpeedDrop is 3.0 m/s; an earlier value of 5.0 missed fast
// sweepers such as Eau Rouge and must not be reintroduced (§9).
var Presets = map[TrackType]Preset{
	TrackRoad:   {MinCornerSpeedDrop: 3.0, ApexSpeedCeiling: 60, BrakeThreshold: 0.05, ThrottleThreshold: 0.90, MergeGapM: 30},
	TrackStreet: {MinCornerSpeedDrop: 2.0, ApexSpeedCeiling: 45, BrakeThreshold: 0.05, ThrottleThreshold: 0.85, MergeGapM: 20},
	TrackOval:   {MinCornerSpeedDrop: 8.0, ApexSpeedCeiling: 70, BrakeThreshold: 0.03, ThrottleThreshold: 0.90, MergeGapM: 60},
}

// PresetFor resolves a track type to its preset, defaulting to road when
// the type is unknown or empty (§9).
func PresetFor(t TrackType) Preset {
	if p, ok := Presets[t]; ok {
		return p
	}
	return Presets[TrackRoad]
}
