// Package lap implements the lap splitter (C2) and distance normaliser
// (C3): slicing the sample stream into per-lap ranges and resampling each
// lap onto a uniform 1-metre distance grid.
package lap

import "github.com/banshee-data/telemetry-core/internal/capture"

// RawLap is a contiguous sample range sharing one Lap channel value.
type RawLap struct {
	Number     int32
	StartIndex int
	EndIndex   int // exclusive
}

// Split slices the Lap channel into contiguous RawLaps. A lap break is any
// index i where Lap[i] != Lap[i-1]; the out-lap and in-lap are retained —
// exclusion is a policy of the Analyser, not this splitter.
func Split(lapChannel capture.Channel) []RawLap {
	n := lapChannel.Len()
	if n == 0 {
		return nil
	}
	vals := lapChannel.Int32

	var laps []RawLap
	start := 0
	for i := 1; i < n; i++ {
		if vals[i] != vals[i-1] {
			laps = append(laps, RawLap{Number: vals[start], StartIndex: start, EndIndex: i})
			start = i
		}
	}
	laps = append(laps, RawLap{Number: vals[start], StartIndex: start, EndIndex: n})
	return laps
}
