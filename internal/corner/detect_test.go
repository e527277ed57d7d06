package corner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry-core/internal/lap"
)

// syntheticLap builds a NormalisedLap with one deliberate corner: a
// straight at 70 m/s, braking down to 25 m/s, then accelerating back out.
func syntheticLap(length int) *lap.NormalisedLap {
	speed := make([]float64, length)
	brake := make([]float64, length)
	throttle := make([]float64, length)
	steer := make([]float64, length)
	dist := make([]float64, length)

	const (
		brakeStart = 300
		apex       = 350
		exitDone   = 420
	)
	for i := 0; i < length; i++ {
		dist[i] = float64(i)
		switch {
		case i < brakeStart:
			speed[i] = 70
			throttle[i] = 1.0
		case i < apex:
			t := float64(i-brakeStart) / float64(apex-brakeStart)
			speed[i] = 70 - t*(70-25)
			brake[i] = 0.6
		case i < exitDone:
			t := float64(i-apex) / float64(exitDone-apex)
			speed[i] = 25 + t*(70-25)
			throttle[i] = 0.95
		default:
			speed[i] = 70
			throttle[i] = 1.0
		}
	}

	return &lap.NormalisedLap{
		LapNumber:   1,
		LapTime:     90,
		Distance:    dist,
		SessionTime: dist, // monotone placeholder, unused by detector
		Speed:       speed,
		Throttle:    throttle,
		Brake:       brake,
		Steering:    steer,
	}
}

func TestDetect_FindsSyntheticCorner(t *testing.T) {
	nl := syntheticLap(800)
	segs := Detect(nl, Presets[TrackRoad])
	require.NotEmpty(t, segs, "expected at least one detected corner")

	s := segs[0]
	require.Less(t, s.EntryM, s.ApexM)
	require.Less(t, s.ApexM, s.ExitM)
	require.InDelta(t, 350, s.ApexM, 15, "apex should land near the synthetic braking zone")
	require.Less(t, s.ApexSpeed, 40.0)
}

func TestDetect_SegmentsAreDisjointAndOrdered(t *testing.T) {
	nl := syntheticLap(800)
	segs := Detect(nl, Presets[TrackRoad])
	for i := 1; i < len(segs); i++ {
		require.LessOrEqual(t, segs[i-1].ExitM, segs[i].EntryM, "segments must not overlap")
	}
	for _, s := range segs {
		require.Less(t, s.EntryM, s.ApexM)
		require.Less(t, s.ApexM, s.ExitM)
	}
}

func TestDetect_FlatLapYieldsNoCorners(t *testing.T) {
	length := 500
	speed := make([]float64, length)
	throttle := make([]float64, length)
	for i := range speed {
		speed[i] = 50
		throttle[i] = 1
	}
	nl := &lap.NormalisedLap{
		Speed:    speed,
		Throttle: throttle,
		Brake:    make([]float64, length),
		Steering: make([]float64, length),
	}
	segs := Detect(nl, Presets[TrackRoad])
	require.Empty(t, segs)
}

// chicaneLap builds two braking/apex/exit zones whose gap is inside
// MergeGapM for the road preset, so Detect should fold them into one
// chicane segment rather than reporting two separate corners.
func chicaneLap(length int) *lap.NormalisedLap {
	speed := make([]float64, length)
	brake := make([]float64, length)
	throttle := make([]float64, length)
	steer := make([]float64, length)
	dist := make([]float64, length)

	zones := []struct{ brakeStart, apex, exitDone int }{
		{200, 230, 260},
		{275, 300, 330}, // entry (275) is 15 m past first exit (260) < MergeGapM (30)
	}
	for i := range speed {
		dist[i] = float64(i)
		speed[i] = 70
		throttle[i] = 1.0
	}
	for _, z := range zones {
		for i := z.brakeStart; i < z.apex; i++ {
			t := float64(i-z.brakeStart) / float64(z.apex-z.brakeStart)
			speed[i] = 70 - t*(70-22)
			brake[i] = 0.6
			throttle[i] = 0
		}
		for i := z.apex; i < z.exitDone; i++ {
			t := float64(i-z.apex) / float64(z.exitDone-z.apex)
			speed[i] = 22 + t*(70-22)
			throttle[i] = 0.95
			brake[i] = 0
		}
	}

	return &lap.NormalisedLap{
		LapNumber:   1,
		LapTime:     90,
		Distance:    dist,
		SessionTime: dist,
		Speed:       speed,
		Throttle:    throttle,
		Brake:       brake,
		Steering:    steer,
	}
}

func TestDetect_MergesAdjacentCornersWithinMergeGap(t *testing.T) {
	nl := chicaneLap(800)
	segs := Detect(nl, Presets[TrackRoad])
	require.Len(t, segs, 1, "two corners within the road preset's merge gap should fold into one")
	require.Equal(t, Chicane, segs[0].Type)
	require.Less(t, segs[0].EntryM, segs[0].ApexM)
	require.Less(t, segs[0].ApexM, segs[0].ExitM)
}

func TestSmoothSpeed_PreservesLengthAndClampsEdges(t *testing.T) {
	speed := make([]float64, 60)
	for i := range speed {
		speed[i] = 50 + 10*math.Sin(float64(i)/5)
	}
	smoothed := smoothSpeed(speed, smoothWindowM, smoothOrder)
	require.Len(t, smoothed, len(speed))
}
