package trackstore

import "sort"

// DetectedInterval is the subset of a corner.Segment the registry needs:
// an entry/exit span and an apex distance, kept independent of the
// corner package so the registry does not depend on the detector.
type DetectedInterval struct {
	Index  int
	EntryM int
	ApexM  int
	ExitM  int
}

// Match is one detected-to-named pairing; Record is nil when nothing
// matched (the segment keeps corner_name = None per §4.6).
type Match struct {
	Detected DetectedInterval
	Record   *CornerRecord
}

const apexProximityToleranceM = 50.0

// MatchCorners matches detected intervals to a track's named corner
// records by maximal interval overlap, greedy and longest-overlap-first,
// one-to-one in both directions. Falls back to apex proximity when no
// record overlaps a given segment.
func MatchCorners(detected []DetectedInterval, records []CornerRecord) []Match {
	type candidate struct {
		di       int
		ri       int
		overlap  float64
		fallback bool
	}

	var candidates []candidate
	for di, d := range detected {
		best := -1
		bestOverlap := 0.0
		for ri, r := range records {
			ov := overlapLength(float64(d.EntryM), float64(d.ExitM), r.DistanceStartMeters, r.DistanceEndMeters)
			if ov > bestOverlap {
				bestOverlap = ov
				best = ri
			}
		}
		if best >= 0 {
			candidates = append(candidates, candidate{di: di, ri: best, overlap: bestOverlap})
			continue
		}
		// Fallback: apex proximity, measured from the apex to the nearer
		// end of the record's interval.
		bestDist := apexProximityToleranceM
		bestRi := -1
		for ri, r := range records {
			apex := float64(d.ApexM)
			dist := minF(absF(apex-r.DistanceStartMeters), absF(apex-r.DistanceEndMeters))
			if dist <= bestDist {
				bestDist = dist
				bestRi = ri
			}
		}
		if bestRi >= 0 {
			candidates = append(candidates, candidate{di: di, ri: bestRi, overlap: -bestDist, fallback: true})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].overlap > candidates[j].overlap
	})

	usedDetected := make(map[int]bool)
	usedRecords := make(map[int]bool)
	matchedRecord := make(map[int]*CornerRecord)

	for _, c := range candidates {
		if usedDetected[c.di] || usedRecords[c.ri] {
			continue
		}
		usedDetected[c.di] = true
		usedRecords[c.ri] = true
		r := records[c.ri]
		matchedRecord[c.di] = &r
	}

	out := make([]Match, len(detected))
	for i, d := range detected {
		out[i] = Match{Detected: d, Record: matchedRecord[i]}
	}
	return out
}

func overlapLength(aStart, aEnd, bStart, bEnd float64) float64 {
	lo := maxF(aStart, bStart)
	hi := minF(aEnd, bEnd)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absF(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}
