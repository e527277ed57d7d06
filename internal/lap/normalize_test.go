package lap

import (
	"math"
	"testing"

	"github.com/banshee-data/telemetry-core/internal/capture"
)

// buildChannels assembles the minimal channel set Normalise reads, all
// sized n, with LapDist/SessionTime/LapCurrentLapTime driven by the given
// per-sample generators so each test can shape its own RawLap.
func buildChannels(n int, lapDist, sessionTime, lapCurTime func(i int) float64, onPit func(i int) bool) map[string]capture.Channel {
	mk := func(f func(i int) float64) capture.Channel {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = f(i)
		}
		return capture.Channel{Type: capture.TypeFloat32, Float64: vals}
	}
	zero := func(i int) float64 { return 0 }

	pit := make([]bool, n)
	if onPit != nil {
		for i := range pit {
			pit[i] = onPit(i)
		}
	}
	gear := make([]int32, n)
	surface := make([]int32, n)

	return map[string]capture.Channel{
		"Speed":              mk(func(i int) float64 { return 30 }),
		"Throttle":           mk(zero),
		"Brake":              mk(zero),
		"SteeringWheelAngle": mk(zero),
		"Lat":                mk(zero),
		"Lon":                mk(zero),
		"Alt":                mk(zero),
		"RPM":                mk(zero),
		"Gear":               {Type: capture.TypeInt32, Int32: gear},
		"PlayerTrackSurface": {Type: capture.TypeInt32, Int32: surface},
		"OnPitRoad":          {Type: capture.TypeBool, Bool: pit},
		"LapDist":            mk(lapDist),
		"LapCurrentLapTime":  mk(lapCurTime),
		"SessionTime":        mk(sessionTime),
	}
}

func TestNormalise_GridAndLapTimeFromFinalSample(t *testing.T) {
	const n = 120
	const trackLen = 100.0
	chans := buildChannels(n,
		func(i int) float64 { return float64(i) },
		func(i int) float64 { return float64(i) * 0.1 },
		// LapCurrentLapTime resets five samples before the end of this
		// raw lap, so its maximum (11.4 at i=114) and its final sample
		// (0.4 at i=119) differ; Normalise must report the final one.
		func(i int) float64 {
			if i < n-5 {
				return float64(i) * 0.1
			}
			return float64(i-(n-5)) * 0.1 // small values near the end
		},
		nil,
	)
	raw := RawLap{Number: 1, StartIndex: 0, EndIndex: n}

	nl, err := Normalise(chans, raw, trackLen)
	if err != nil {
		t.Fatalf("Normalise: %v", err)
	}

	wantLen := int(math.Floor(trackLen)) + 1
	if len(nl.Distance) != wantLen {
		t.Fatalf("len(Distance) = %d, want %d", len(nl.Distance), wantLen)
	}
	for i, d := range nl.Distance {
		if d != float64(i) {
			t.Fatalf("Distance[%d] = %v, want %v", i, d, float64(i))
		}
	}

	for i := 1; i < len(nl.SessionTime); i++ {
		if nl.SessionTime[i] <= nl.SessionTime[i-1] {
			t.Fatalf("SessionTime not strictly increasing at %d: %v <= %v", i, nl.SessionTime[i], nl.SessionTime[i-1])
		}
	}

	// final LapCurrentLapTime sample, not the max over the row.
	wantLapTime := float64((n-1)-(n-5)) * 0.1
	if math.Abs(nl.LapTime-wantLapTime) > 1e-9 {
		t.Errorf("LapTime = %v, want %v (final sample, not max)", nl.LapTime, wantLapTime)
	}
}

func TestNormalise_RejectsDistanceJumpWhileMoving(t *testing.T) {
	const n = 120
	chans := buildChannels(n,
		func(i int) float64 {
			if i == 80 {
				return 10 // backward jump while Speed (constant 30 m/s) is > 1 m/s
			}
			return float64(i)
		},
		func(i int) float64 { return float64(i) * 0.1 },
		func(i int) float64 { return float64(i) * 0.1 },
		nil,
	)
	raw := RawLap{Number: 1, StartIndex: 0, EndIndex: n}

	_, err := Normalise(chans, raw, 100)
	rej, ok := err.(*RejectedError)
	if !ok || rej.Reason != ReasonDistanceJump {
		t.Fatalf("err = %v, want distance_jump rejection", err)
	}
}

func TestNormalise_RejectsInsufficientCoverage(t *testing.T) {
	const n = 50
	chans := buildChannels(n,
		func(i int) float64 { return float64(i) * 0.2 }, // covers only 10 m of a 100 m track
		func(i int) float64 { return float64(i) * 0.1 },
		func(i int) float64 { return float64(i) * 0.1 },
		nil,
	)
	raw := RawLap{Number: 1, StartIndex: 0, EndIndex: n}

	_, err := Normalise(chans, raw, 100)
	rej, ok := err.(*RejectedError)
	if !ok {
		t.Fatalf("err = %v, want *RejectedError", err)
	}
	if rej.Reason != ReasonInsufficientCoverage {
		t.Errorf("Reason = %q, want %q", rej.Reason, ReasonInsufficientCoverage)
	}
}

func TestNormalise_RejectsPitLap(t *testing.T) {
	const n = 120
	chans := buildChannels(n,
		func(i int) float64 { return float64(i) },
		func(i int) float64 { return float64(i) * 0.1 },
		func(i int) float64 { return float64(i) * 0.1 },
		func(i int) bool { return i == 60 },
	)
	raw := RawLap{Number: 1, StartIndex: 0, EndIndex: n}

	_, err := Normalise(chans, raw, 100)
	rej, ok := err.(*RejectedError)
	if !ok || rej.Reason != ReasonPitLap {
		t.Fatalf("err = %v, want pit_lap rejection", err)
	}
}

func TestNormalise_DedupesEqualConsecutiveDistance_KeepsLast(t *testing.T) {
	const n = 130
	const trackLen = 100.0
	// Distance holds flat at 50 m for ten samples (braking/crawl), then
	// resumes increasing; SessionTime keeps advancing throughout, so the
	// kept (last-occurrence) row should carry the later SessionTime.
	chans := buildChannels(n,
		func(i int) float64 {
			switch {
			case i < 50:
				return float64(i)
			case i < 60:
				return 50
			default:
				return float64(i - 9)
			}
		},
		func(i int) float64 { return float64(i) * 0.1 },
		func(i int) float64 { return float64(i) * 0.1 },
		nil,
	)
	raw := RawLap{Number: 1, StartIndex: 0, EndIndex: n}

	nl, err := Normalise(chans, raw, trackLen)
	if err != nil {
		t.Fatalf("Normalise: %v", err)
	}
	// SessionTime at distance 50 should reflect the last sample observed
	// at that distance (i=59 -> 5.9), not the first (i=50 -> 5.0).
	if got, want := nl.SessionTime[50], 5.9; math.Abs(got-want) > 1e-9 {
		t.Errorf("SessionTime[50] = %v, want %v (last-occurrence dedup)", got, want)
	}
}
