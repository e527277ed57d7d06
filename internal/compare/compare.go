// Package compare implements the lap comparator (C7): per-corner deltas
// between two normalised laps, theoretical best across a set, and
// consistency analysis.
package compare

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/telemetry-core/internal/corner"
	"github.com/banshee-data/telemetry-core/internal/lap"
)

// CornerDelta is the comparator's per-corner output for one (candidate,
// reference) pair, per §3/§4.7.
type CornerDelta struct {
	Corner                      corner.Segment
	CornerName                  string // empty if unmatched
	EntryM, ApexM, ExitM        int
	BrakingPointDeltaM          float64
	MinSpeedDelta               float64
	ThrottleApplicationDeltaM   float64
	TimeDeltaS                  *float64 // nil if rejected (negative interval)
	LapPositionPercent          float64
}

const (
	brakingSearchBackoffM = 200
	brakeOnsetThreshold    = 0.1
	throttleOnsetThreshold = 0.9
)

// ComputeCornerDelta computes every delta defined by §4.7 for one corner
// shared between candidate and reference laps.
func ComputeCornerDelta(candidate, reference *lap.NormalisedLap, seg corner.Segment, trackLengthM float64) *CornerDelta {
	entry, apex, exit := seg.EntryM, seg.ApexM, seg.ExitM
	if exit >= len(candidate.Distance) || exit >= len(reference.Distance) {
		return nil
	}

	brakeSearchStart := entry - brakingSearchBackoffM
	if brakeSearchStart < 0 {
		brakeSearchStart = 0
	}
	candBrake := firstBrakeOnset(candidate.Brake, brakeSearchStart, entry)
	refBrake := firstBrakeOnset(reference.Brake, brakeSearchStart, entry)

	candThrottle := firstThrottleOnset(candidate.Throttle, apex, exit)
	refThrottle := firstThrottleOnset(reference.Throttle, apex, exit)

	candMin := minSpeedIn(candidate.Speed, entry, exit)
	refMin := minSpeedIn(reference.Speed, entry, exit)

	var timeDelta *float64
	candInterval := candidate.SessionTime[exit] - candidate.SessionTime[entry]
	refInterval := reference.SessionTime[exit] - reference.SessionTime[entry]
	if candInterval >= 0 && refInterval >= 0 {
		d := candInterval - refInterval
		timeDelta = &d
	}

	return &CornerDelta{
		Corner:                    seg,
		EntryM:                    entry,
		ApexM:                     apex,
		ExitM:                     exit,
		BrakingPointDeltaM:        float64(candBrake - refBrake),
		MinSpeedDelta:             candMin - refMin,
		ThrottleApplicationDeltaM: float64(candThrottle - refThrottle),
		TimeDeltaS:                timeDelta,
		LapPositionPercent:        float64(entry) / trackLengthM * 100,
	}
}

// firstBrakeOnset returns the first index at or after start where Brake
// crosses brakeOnsetThreshold, searching up to and including limit;
// returns start if never observed (matches §4.7's "entry is already the
// braking point" framing when no distinct onset is found in range).
func firstBrakeOnset(brake []float64, start, limit int) int {
	if limit >= len(brake) {
		limit = len(brake) - 1
	}
	for i := start; i <= limit; i++ {
		if brake[i] >= brakeOnsetThreshold {
			return i
		}
	}
	return start
}

// firstThrottleOnset returns the first index at or after apex where
// Throttle crosses throttleOnsetThreshold, up to and including limit;
// returns apex if never observed.
func firstThrottleOnset(throttle []float64, apex, limit int) int {
	if limit >= len(throttle) {
		limit = len(throttle) - 1
	}
	for i := apex; i <= limit; i++ {
		if throttle[i] >= throttleOnsetThreshold {
			return i
		}
	}
	return apex
}

func minSpeedIn(speed []float64, from, to int) float64 {
	if to >= len(speed) {
		to = len(speed) - 1
	}
	if from > to {
		return 0
	}
	min := speed[from]
	for i := from + 1; i <= to; i++ {
		if speed[i] < min {
			min = speed[i]
		}
	}
	return min
}

// TheoreticalBest is the sum of per-corner minima across a lap set plus
// the best lap's straight time, per §3/§4.7.
type TheoreticalBest struct {
	TheoreticalTime float64
	BestCorners     map[int]int32 // corner index -> lap number that was fastest
	ActualBestTime  float64
	GapToTheoretical float64
}

// CornerTime returns the elapsed-time span a lap spends inside seg, or
// nil if the interval is degenerate.
func CornerTime(nl *lap.NormalisedLap, seg corner.Segment) *float64 {
	entry, exit := seg.EntryM, seg.ExitM
	if entry < 0 || exit >= len(nl.SessionTime) || exit <= entry {
		return nil
	}
	t := nl.SessionTime[exit] - nl.SessionTime[entry]
	return &t
}

// ComputeTheoreticalBest selects, for each corner, the minimum corner
// time across laps, sums those minima, and adds the best lap's straight
// time (its total time minus its own corner-time sum).
func ComputeTheoreticalBest(laps []*lap.NormalisedLap, segs []corner.Segment) TheoreticalBest {
	if len(laps) == 0 {
		return TheoreticalBest{}
	}

	bestLap := laps[0]
	for _, l := range laps {
		if l.LapTime < bestLap.LapTime {
			bestLap = l
		}
	}
	if len(segs) == 0 {
		return TheoreticalBest{TheoreticalTime: bestLap.LapTime, ActualBestTime: bestLap.LapTime, BestCorners: map[int]int32{}}
	}

	bestCorners := make(map[int]int32, len(segs))
	totalTheoretical := 0.0
	bestLapCornerTime := 0.0

	for _, seg := range segs {
		bestTime := math.Inf(1)
		var bestLapNum int32
		for _, l := range laps {
			ct := CornerTime(l, seg)
			if ct != nil && *ct < bestTime {
				bestTime = *ct
				bestLapNum = l.LapNumber
			}
		}
		if !math.IsInf(bestTime, 1) {
			totalTheoretical += bestTime
			bestCorners[seg.Index] = bestLapNum
		}
		if ct := CornerTime(bestLap, seg); ct != nil {
			bestLapCornerTime += *ct
		}
	}

	straightTime := bestLap.LapTime - bestLapCornerTime
	theoretical := totalTheoretical + straightTime

	return TheoreticalBest{
		TheoreticalTime:  theoretical,
		BestCorners:      bestCorners,
		ActualBestTime:   bestLap.LapTime,
		GapToTheoretical: bestLap.LapTime - theoretical,
	}
}

// ConsistencyFinding is per-corner consistency across a set of laps.
type ConsistencyFinding struct {
	CornerIndex           int
	MeanTime              float64
	StdDevTime            float64
	BestTime              float64
	WorstTime             float64
	CoefficientOfVariation float64
	ConsistencyIssue      bool // std-dev > 0.15s
	TechniqueIssue        bool // mean delta vs reference > 0.2s, low std-dev
}

const (
	consistencyStdDevThresholdS   = 0.15
	techniqueMeanDeltaThresholdS = 0.2
)

// ConsistencyAnalysis computes per-corner timing consistency across laps,
// using referenceTime as the baseline for the technique-issue check.
func ConsistencyAnalysis(laps []*lap.NormalisedLap, segs []corner.Segment, referenceTimes map[int]float64) []ConsistencyFinding {
	var out []ConsistencyFinding
	for _, seg := range segs {
		var times []float64
		for _, l := range laps {
			if ct := CornerTime(l, seg); ct != nil && *ct > 0 {
				times = append(times, *ct)
			}
		}
		if len(times) < 2 {
			continue
		}

		mean, std := stat.MeanStdDev(times, nil)
		best, worst := times[0], times[0]
		for _, t := range times {
			if t < best {
				best = t
			}
			if t > worst {
				worst = t
			}
		}
		cv := 0.0
		if mean > 0 {
			cv = std / mean
		}

		consistencyIssue := std > consistencyStdDevThresholdS
		technique := false
		if refTime, ok := referenceTimes[seg.Index]; ok && !consistencyIssue {
			technique = (mean - refTime) > techniqueMeanDeltaThresholdS
		}

		out = append(out, ConsistencyFinding{
			CornerIndex:            seg.Index,
			MeanTime:               mean,
			StdDevTime:             std,
			BestTime:               best,
			WorstTime:              worst,
			CoefficientOfVariation: cv,
			ConsistencyIssue:       consistencyIssue,
			TechniqueIssue:         technique,
		})
	}
	return out
}
