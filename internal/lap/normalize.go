package lap

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/telemetry-core/internal/capture"
)

// RejectReason enumerates why a RawLap could not be normalised.
type RejectReason string

const (
	ReasonInsufficientCoverage RejectReason = "insufficient_coverage"
	ReasonDistanceJump         RejectReason = "distance_jump"
	ReasonTooShort             RejectReason = "too_short"
	ReasonPitLap               RejectReason = "pit_lap"
)

// RejectedError reports why Normalise declined to produce a NormalisedLap.
type RejectedError struct {
	Reason RejectReason
}

func (e *RejectedError) Error() string { return "lap rejected: " + string(e.Reason) }

// NormalisedLap is a lap resampled onto an integer-metre distance grid.
type NormalisedLap struct {
	LapNumber   int32
	LapTime     float64 // seconds; final LapCurrentLapTime sample, not max (§9)
	Distance    []float64 // [0, 1, ..., floor(trackLengthM)]
	SessionTime []float64
	Speed       []float64
	Throttle    []float64
	Brake       []float64
	Steering    []float64
	Lat         []float64
	Lon         []float64
	Alt         []float64
	RPM         []float64
	Gear        []int32
	TrackSurface []int32
	OnPitRoad   []bool
}

const stationarySpeedThreshold = 0.1 // m/s

// Normalise resamples one RawLap onto a uniform 1 m distance grid,
// following §4.3's eight-step algorithm.
func Normalise(chans map[string]capture.Channel, raw RawLap, trackLengthM float64) (*NormalisedLap, error) {
	speed := chans["Speed"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	throttle := chans["Throttle"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	brake := chans["Brake"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	steering := chans["SteeringWheelAngle"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	lat := chans["Lat"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	lon := chans["Lon"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	alt := chans["Alt"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	rpm := chans["RPM"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	gear := chans["Gear"].Int32[raw.StartIndex:raw.EndIndex]
	surface := chans["PlayerTrackSurface"].Int32[raw.StartIndex:raw.EndIndex]
	onPit := chans["OnPitRoad"].Bool[raw.StartIndex:raw.EndIndex]
	lapDist := chans["LapDist"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	lapCurTime := chans["LapCurrentLapTime"].AsFloat64()[raw.StartIndex:raw.EndIndex]
	sessionTime := chans["SessionTime"].AsFloat64()[raw.StartIndex:raw.EndIndex]

	for _, p := range onPit {
		if p {
			return nil, &RejectedError{Reason: ReasonPitLap}
		}
	}

	// (1) trim trailing stationary samples.
	end := len(speed)
	for end > 1 && speed[end-1] < stationarySpeedThreshold {
		end--
	}
	if end < 2 {
		return nil, &RejectedError{Reason: ReasonTooShort}
	}

	distance := lapDist[:end]
	spd := speed[:end]
	thr := throttle[:end]
	brk := brake[:end]
	steer := steering[:end]
	la := lat[:end]
	lo := lon[:end]
	al := alt[:end]
	rp := rpm[:end]
	gr := gear[:end]
	sf := surface[:end]
	st := sessionTime[:end]

	// (3) coverage check.
	lo_d, hi_d := floats.Min(distance), floats.Max(distance)
	if hi_d-lo_d < 0.90*trackLengthM {
		return nil, &RejectedError{Reason: ReasonInsufficientCoverage}
	}

	// (4) monotonicity while moving.
	for i := 1; i < len(distance); i++ {
		if spd[i] > 1.0 && distance[i] < distance[i-1] {
			return nil, &RejectedError{Reason: ReasonDistanceJump}
		}
	}

	// (5) dedupe: keep last occurrence of equal consecutive distance.
	keep := make([]bool, len(distance))
	for i := range distance {
		keep[i] = true
	}
	for i := 0; i < len(distance)-1; i++ {
		if distance[i] == distance[i+1] {
			keep[i] = false
		}
	}
	var d, sOut, spOut, thOut, brOut, stOut, latOut, lonOut, altOut, rpmOut []float64
	var gearOut, surfOut []int32
	for i, k := range keep {
		if !k {
			continue
		}
		d = append(d, distance[i])
		sOut = append(sOut, st[i])
		spOut = append(spOut, spd[i])
		thOut = append(thOut, thr[i])
		brOut = append(brOut, brk[i])
		stOut = append(stOut, steer[i])
		latOut = append(latOut, la[i])
		lonOut = append(lonOut, lo[i])
		altOut = append(altOut, al[i])
		rpmOut = append(rpmOut, rp[i])
		gearOut = append(gearOut, gr[i])
		surfOut = append(surfOut, sf[i])
	}

	// (6) target grid.
	gridLen := int(math.Floor(trackLengthM)) + 1
	grid := make([]float64, gridLen)
	for i := range grid {
		grid[i] = float64(i)
	}

	nl := &NormalisedLap{
		LapNumber:   raw.Number,
		LapTime:     lapCurTime[end-1], // final sample, not max — see §9
		Distance:    grid,
		SessionTime: interpLinear(d, sOut, grid),
		Speed:       interpLinear(d, spOut, grid),
		Throttle:    interpLinear(d, thOut, grid),
		Brake:       interpLinear(d, brOut, grid),
		Steering:    interpLinear(d, stOut, grid),
		Lat:         interpLinear(d, latOut, grid),
		Lon:         interpLinear(d, lonOut, grid),
		Alt:         interpLinear(d, altOut, grid),
		RPM:         interpLinear(d, rpmOut, grid),
		Gear:        nearestInt32(d, gearOut, grid),
		TrackSurface: nearestInt32(d, surfOut, grid),
		OnPitRoad:   make([]bool, gridLen), // all false: pit laps are rejected above
	}

	for i := 1; i < len(nl.SessionTime); i++ {
		if nl.SessionTime[i] <= nl.SessionTime[i-1] {
			return nil, &RejectedError{Reason: ReasonDistanceJump}
		}
	}

	return nl, nil
}

// interpLinear linearly interpolates ys(xs) onto grid, holding the
// boundary value constant outside [xs[0], xs[len-1]] (matching the
// original implementation's constant-extrapolation fill policy).
func interpLinear(xs, ys, grid []float64) []float64 {
	out := make([]float64, len(grid))
	for i, x := range grid {
		out[i] = lerpAt(xs, ys, x)
	}
	return out
}

func lerpAt(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	j := sort.SearchFloat64s(xs, x)
	if j < n && xs[j] == x {
		return ys[j]
	}
	lo, hi := j-1, j
	span := xs[hi] - xs[lo]
	if span == 0 {
		return ys[lo]
	}
	t := (x - xs[lo]) / span
	return ys[lo] + t*(ys[hi]-ys[lo])
}

// nearestInt32 resamples a discrete channel by nearest-neighbour.
func nearestInt32(xs []float64, ys []int32, grid []float64) []int32 {
	out := make([]int32, len(grid))
	n := len(xs)
	for i, x := range grid {
		if n == 0 {
			continue
		}
		j := sort.SearchFloat64s(xs, x)
		switch {
		case j <= 0:
			out[i] = ys[0]
		case j >= n:
			out[i] = ys[n-1]
		default:
			if x-xs[j-1] <= xs[j]-x {
				out[i] = ys[j-1]
			} else {
				out[i] = ys[j]
			}
		}
	}
	return out
}
