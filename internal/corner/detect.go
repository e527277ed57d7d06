package corner

import (
	"math"

	"github.com/banshee-data/telemetry-core/internal/lap"
)

// Type classifies a detected corner, per §4.4 step 7.
type Type string

const (
	Hairpin     Type = "hairpin"
	Sweeper     Type = "sweeper"
	Chicane     Type = "chicane"
	Kink        Type = "kink"
	HeavyBraking Type = "heavy_braking"
	Unknown     Type = "unknown"
)

// Segment is a detected corner interval on a NormalisedLap's distance
// grid. EntryM < ApexM < ExitM, and segments are disjoint and ordered.
type Segment struct {
	Index     int // 1-based, sequential detection order — not a canonical turn number
	EntryM    int
	ApexM     int
	ExitM     int
	ApexSpeed float64
	Type      Type
}

const (
	smoothWindowM    = 21
	smoothOrder      = 3
	entryWalkBoundM  = 250
	exitRiseRunM     = 20
	minSpanM         = 40
	derivativeEpsilon = 0.02
)

// Detect segments one NormalisedLap into corners using the given preset.
func Detect(nl *lap.NormalisedLap, preset Preset) []Segment {
	speed := nl.Speed
	n := len(speed)
	if n < smoothWindowM {
		return nil
	}

	smoothed := smoothSpeed(speed, smoothWindowM, smoothOrder)

	apexIdx := findApexCandidates(smoothed, preset.ApexSpeedCeiling, preset.MinCornerSpeedDrop)
	if len(apexIdx) == 0 {
		return nil
	}

	var segs []Segment
	for i, apex := range apexIdx {
		entry := findEntry(nl.Brake, smoothed, apex, preset.BrakeThreshold)
		exit := findExit(nl.Throttle, speed, apex, preset.ThrottleThreshold)
		if entry >= apex || apex >= exit {
			continue
		}
		segs = append(segs, Segment{
			Index:     i + 1,
			EntryM:    entry,
			ApexM:     apex,
			ExitM:     exit,
			ApexSpeed: smoothed[apex],
		})
	}
	if len(segs) == 0 {
		return nil
	}

	segs = mergeClose(segs, preset.MergeGapM)
	segs = filterFalsePositives(segs, smoothed, preset.MinCornerSpeedDrop)

	for i := range segs {
		segs[i].Index = i + 1
		segs[i].Type = classify(segs[i], nl)
	}
	return segs
}

// findApexCandidates locates local minima in smoothed below the apex
// ceiling whose surrounding peak-to-trough drop meets min_corner_speed_drop.
func findApexCandidates(smoothed []float64, ceiling, minDrop float64) []int {
	n := len(smoothed)
	var apexes []int
	for i := 1; i < n-1; i++ {
		if smoothed[i] >= ceiling {
			continue
		}
		if !(smoothed[i] <= smoothed[i-1] && smoothed[i] <= smoothed[i+1]) {
			continue
		}
		if smoothed[i] == smoothed[i-1] && smoothed[i] == smoothed[i+1] {
			continue // flat plateau, not a true trough
		}
		prevPeak := precedingPeak(smoothed, i)
		nextPeak := followingPeak(smoothed, i)
		drop := math.Max(prevPeak, nextPeak) - smoothed[i]
		if drop >= minDrop {
			apexes = append(apexes, i)
		}
	}
	return apexes
}

func precedingPeak(s []float64, i int) float64 {
	j := i
	for j > 0 && s[j-1] >= s[j] {
		j--
	}
	return s[j]
}

func followingPeak(s []float64, i int) float64 {
	n := len(s)
	j := i
	for j < n-1 && s[j+1] >= s[j] {
		j++
	}
	return s[j]
}

// findEntry walks backward from apex until braking onset or a positive
// speed derivative (deceleration onset), bounded to 250 m.
func findEntry(brake, smoothed []float64, apex int, brakeThreshold float64) int {
	lo := apex - entryWalkBoundM
	if lo < 0 {
		lo = 0
	}
	for i := apex; i > lo; i-- {
		if brake[i] >= brakeThreshold && brake[i-1] < brakeThreshold {
			return i
		}
		deriv := smoothed[i] - smoothed[i-1]
		if deriv > derivativeEpsilon {
			return i
		}
	}
	return lo
}

// findExit walks forward from apex to the first point where throttle is
// applied and speed rises over the following 20 m, and returns the end of
// that 20 m run (clamped to the lap), so the exit always lies past the apex.
func findExit(throttle, speed []float64, apex int, throttleThreshold float64) int {
	n := len(speed)
	for i := apex; i < n; i++ {
		if throttle[i] >= throttleThreshold && speedRisingFor(speed, i, exitRiseRunM) {
			if i+exitRiseRunM >= n {
				return n - 1
			}
			return i + exitRiseRunM
		}
	}
	return n - 1
}

func speedRisingFor(speed []float64, from, runM int) bool {
	n := len(speed)
	end := from + runM
	if end >= n {
		end = n - 1
	}
	if end <= from {
		return false
	}
	return speed[end] > speed[from]
}

// mergeClose merges adjacent corners whose gap is within mergeGapM.
func mergeClose(segs []Segment, mergeGapM float64) []Segment {
	if len(segs) <= 1 {
		return segs
	}
	merged := []Segment{segs[0]}
	for _, next := range segs[1:] {
		prev := &merged[len(merged)-1]
		gap := float64(next.EntryM - prev.ExitM)
		if gap <= mergeGapM {
			if next.ApexSpeed < prev.ApexSpeed {
				prev.ApexM = next.ApexM
				prev.ApexSpeed = next.ApexSpeed
			}
			prev.ExitM = next.ExitM
			prev.Type = Chicane
		} else {
			merged = append(merged, next)
		}
	}
	return merged
}

// filterFalsePositives drops corners whose entry-to-apex drop is too
// small after merging, or whose span is below 40 m.
func filterFalsePositives(segs []Segment, smoothed []float64, minDrop float64) []Segment {
	var out []Segment
	for _, s := range segs {
		if float64(s.ExitM-s.EntryM) < minSpanM {
			continue
		}
		entrySpeed := smoothed[s.EntryM]
		if entrySpeed-s.ApexSpeed < minDrop {
			continue
		}
		out = append(out, s)
	}
	return out
}

// classify assigns a corner type per §4.4 step 7.
func classify(s Segment, nl *lap.NormalisedLap) Type {
	if s.Type == Chicane {
		return Chicane
	}

	maxBrake := 0.0
	cumSteer := 0.0
	for i := s.EntryM; i <= s.ExitM && i < len(nl.Brake); i++ {
		if nl.Brake[i] > maxBrake {
			maxBrake = nl.Brake[i]
		}
		if i > s.EntryM {
			cumSteer += math.Abs(nl.Steering[i] - nl.Steering[i-1])
		}
	}
	entrySpeed := 0.0
	if s.EntryM < len(nl.Speed) {
		entrySpeed = nl.Speed[s.EntryM]
	}
	speedDrop := entrySpeed - s.ApexSpeed
	span := float64(s.ExitM - s.EntryM)
	cumSteerDeg := cumSteer * 180 / math.Pi

	switch {
	case s.ApexSpeed < 20 && cumSteerDeg > 120:
		return Hairpin
	case s.ApexSpeed > 40 && maxBrake < 0.2:
		return Sweeper
	case maxBrake > 0.8 && speedDrop > 25:
		return HeavyBraking
	case span < 80 && speedDrop < 6:
		return Kink
	default:
		return Unknown
	}
}
