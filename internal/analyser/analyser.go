// Package analyser implements the Analyser (C8): end-to-end orchestration
// of the pipeline from a decoded capture through to a CoachingPayload,
// including the disrupted-lap pace filter, reference/contrast selection,
// corner naming, priority-corner ranking, and consistency analysis.
package analyser

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/banshee-data/telemetry-core/internal/capture"
	"github.com/banshee-data/telemetry-core/internal/compare"
	"github.com/banshee-data/telemetry-core/internal/corner"
	"github.com/banshee-data/telemetry-core/internal/errs"
	"github.com/banshee-data/telemetry-core/internal/lap"
	"github.com/banshee-data/telemetry-core/internal/monitoring"
	"github.com/banshee-data/telemetry-core/internal/trackstore"
)

// Diagnosis tags a PriorityCorner's CornerDelta per §4.7's classification
// rules.
type Diagnosis string

const (
	DiagnosisLateBrakeOverSlow        Diagnosis = "late_brake_over_slow"
	DiagnosisEarlyLift                Diagnosis = "early_lift"
	DiagnosisTightLine                Diagnosis = "tight_line"
	DiagnosisEarlyThrottleLossOfDrive Diagnosis = "early_throttle_loss_of_drive"
	DiagnosisOther                    Diagnosis = "other"
)

const (
	diagBrakingPointThresholdM = 5.0
	diagMinSpeedDeltaThreshold = -2.0
	diagTightLineSpeedDelta    = -3.0
	diagEarlyLiftMaxBrake      = 0.3
	diagThrottleDeltaThreshold = -10.0
	exitSpeedSampleOffsetM     = 100

	// disruptedLapPaceFactor excludes any lap slower than this multiple of
	// the session's fastest survivor (§4.8) — replacing an earlier
	// zero-incident filter that was too strict (§4.8 design note).
	disruptedLapPaceFactor = 1.10

	priorityCornerCount = 3
)

// NamedSegment pairs a detected corner segment with its matched name, for
// downstream plotting by an external collaborator (§4.8).
type NamedSegment struct {
	Segment    corner.Segment
	CornerName string // empty if unmatched
}

// PriorityCorner is one of the top-ranked corners by absolute time loss.
type PriorityCorner struct {
	CornerName   string
	CornerNumber int
	TimeLostS    float64
	Diagnosis    Diagnosis
	Delta        compare.CornerDelta
}

// CoachingPayload is the Analyser's single structured output (§4.8/§6).
type CoachingPayload struct {
	RunID              string
	Meta               capture.SessionMeta
	ReferenceLapNumber int32
	ReferenceLapTimeS  float64
	TheoreticalBest    compare.TheoreticalBest
	PriorityCorners    []PriorityCorner
	Consistency        []compare.ConsistencyFinding
	ReferenceSegments  []NamedSegment
}

// Options carries pointer-optional overrides for one analysis invocation,
// following the tuning-config pattern of Get*() defaults over a fixed
// preset enumeration.
type Options struct {
	Preset    *corner.TrackType // overrides the track's stored/derived type
	Store     *trackstore.Store // nil: corner naming is skipped (§7)
	RunID     *string
	Ctx       context.Context // cancellation token, checked between stages
}

func (o Options) context() context.Context {
	if o.Ctx != nil {
		return o.Ctx
	}
	return context.Background()
}

func (o Options) runID() string {
	if o.RunID != nil {
		return *o.RunID
	}
	return uuid.New().String()
}

// Analyse runs C1→C7 over capture bytes and produces a CoachingPayload.
// It is the module's sole embedding/CLI entry point (§6).
func Analyse(buf []byte, opts Options) (*CoachingPayload, error) {
	runID := opts.runID()
	ctx := opts.context()

	cp, err := capture.Decode(buf)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("analyser[%s]: decoded capture for track %q (%s), %d samples", runID, cp.Meta.TrackName, cp.Meta.TrackID, cp.NumSamples)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	lapChan, err := cp.Channel("Lap")
	if err != nil {
		return nil, err
	}
	required, err := cp.RequireChannels()
	if err != nil {
		return nil, err
	}

	rawLaps := lap.Split(lapChan)
	monitoring.Logf("analyser[%s]: split into %d raw laps", runID, len(rawLaps))

	var normalised []*lap.NormalisedLap
	for _, raw := range rawLaps {
		nl, err := lap.Normalise(required, raw, cp.Meta.TrackLengthM)
		if err != nil {
			if rej, ok := err.(*lap.RejectedError); ok {
				monitoring.Logf("analyser[%s]: lap %d rejected: %s", runID, raw.Number, rej.Reason)
				continue
			}
			return nil, err
		}
		normalised = append(normalised, nl)
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	survivors := filterDisruptedLaps(normalised)
	if len(survivors) < 2 {
		return nil, errs.Wrap(errs.NoUsableLap, nil,
			"only %d lap(s) survived normalisation and pace filtering, need at least 2", len(survivors))
	}
	monitoring.Logf("analyser[%s]: %d laps survived pace filtering", runID, len(survivors))

	reference := fastestLap(survivors)
	preset := resolvePreset(cp, opts)

	segs := corner.Detect(reference, preset)
	monitoring.Logf("analyser[%s]: detected %d corner segments on reference lap %d", runID, len(segs), reference.LapNumber)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	names := nameSegments(cp.Meta.TrackID, segs, opts.Store, runID)

	candidate := medianLap(survivors, reference)

	var priorities []PriorityCorner
	var deltas []compare.CornerDelta
	for _, seg := range segs {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		d := compare.ComputeCornerDelta(candidate, reference, seg, cp.Meta.TrackLengthM)
		if d == nil || d.TimeDeltaS == nil {
			continue
		}
		d.CornerName = names[seg.Index]
		deltas = append(deltas, *d)
	}

	sort.SliceStable(deltas, func(i, j int) bool {
		return absF(*deltas[i].TimeDeltaS) > absF(*deltas[j].TimeDeltaS)
	})
	for i, d := range deltas {
		if i >= priorityCornerCount {
			break
		}
		priorities = append(priorities, PriorityCorner{
			CornerName:   d.CornerName,
			CornerNumber: d.Corner.Index,
			TimeLostS:    *d.TimeDeltaS,
			Diagnosis:    diagnose(d, candidate, reference),
			Delta:        d,
		})
	}

	theoretical := compare.ComputeTheoreticalBest(survivors, segs)

	referenceTimes := make(map[int]float64, len(segs))
	for _, seg := range segs {
		if ct := compare.CornerTime(reference, seg); ct != nil {
			referenceTimes[seg.Index] = *ct
		}
	}
	consistency := compare.ConsistencyAnalysis(survivors, segs, referenceTimes)

	var refSegs []NamedSegment
	for _, seg := range segs {
		refSegs = append(refSegs, NamedSegment{Segment: seg, CornerName: names[seg.Index]})
	}

	return &CoachingPayload{
		RunID:              runID,
		Meta:               cp.Meta,
		ReferenceLapNumber: reference.LapNumber,
		ReferenceLapTimeS:  reference.LapTime,
		TheoreticalBest:    theoretical,
		PriorityCorners:    priorities,
		Consistency:        consistency,
		ReferenceSegments:  refSegs,
	}, nil
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, ctx.Err(), "analysis cancelled")
	default:
		return nil
	}
}

// filterDisruptedLaps excludes any lap whose time exceeds
// disruptedLapPaceFactor times the session minimum (§4.8; replaces an
// earlier zero-incident filter that was too strict).
func filterDisruptedLaps(laps []*lap.NormalisedLap) []*lap.NormalisedLap {
	if len(laps) == 0 {
		return nil
	}
	min := laps[0].LapTime
	for _, l := range laps {
		if l.LapTime < min {
			min = l.LapTime
		}
	}
	threshold := min * disruptedLapPaceFactor
	var out []*lap.NormalisedLap
	for _, l := range laps {
		if l.LapTime <= threshold {
			out = append(out, l)
		}
	}
	return out
}

// fastestLap returns the survivor with the minimum lap time, used as the
// reference lap (§4.8).
func fastestLap(laps []*lap.NormalisedLap) *lap.NormalisedLap {
	best := laps[0]
	for _, l := range laps {
		if l.LapTime < best.LapTime {
			best = l
		}
	}
	return best
}

// medianLap returns the survivor whose lap time is the median, excluding
// the reference lap when possible, to expose typical mistakes rather than
// anomalies (§4.8).
func medianLap(laps []*lap.NormalisedLap, reference *lap.NormalisedLap) *lap.NormalisedLap {
	var pool []*lap.NormalisedLap
	for _, l := range laps {
		if l != reference {
			pool = append(pool, l)
		}
	}
	if len(pool) == 0 {
		pool = laps
	}
	sorted := append([]*lap.NormalisedLap(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LapTime < sorted[j].LapTime })
	return sorted[len(sorted)/2]
}

// resolvePreset defaults to road when the track type is unknown or
// unrecorded (§9), honouring an explicit Options override first.
func resolvePreset(cp *capture.Capture, opts Options) corner.Preset {
	if opts.Preset != nil {
		return corner.PresetFor(*opts.Preset)
	}
	if opts.Store != nil {
		if rec, err := opts.Store.GetTrack(cp.Meta.TrackID); err == nil && rec != nil {
			return corner.PresetFor(corner.TrackType(rec.TrackType))
		}
	}
	return corner.PresetFor(corner.TrackRoad)
}

// nameSegments matches detected segments against the track store, lazily
// seeding from the landmarks dataset when the track has no named corners
// yet. Store errors are recovered locally: naming is skipped, not fatal
// (§7).
func nameSegments(trackID string, segs []corner.Segment, store *trackstore.Store, runID string) map[int]string {
	out := make(map[int]string, len(segs))
	if store == nil || len(segs) == 0 {
		return out
	}

	has, err := store.HasNamedCorners(trackID)
	if err != nil {
		monitoring.Logf("analyser[%s]: track store unavailable, skipping corner naming: %v", runID, err)
		return out
	}
	if !has {
		if src, err := trackstore.DefaultLandmarksSnapshot(); err == nil {
			if _, seedErr := store.SeedFromLandmarksDataset(src); seedErr != nil {
				monitoring.Logf("analyser[%s]: landmark seeding failed, proceeding without names: %v", runID, seedErr)
			}
			src.Close()
		}
	}

	records, err := store.ListCorners(trackID)
	if err != nil {
		monitoring.Logf("analyser[%s]: could not list corners for %q, skipping naming: %v", runID, trackID, err)
		return out
	}

	detected := make([]trackstore.DetectedInterval, len(segs))
	for i, s := range segs {
		detected[i] = trackstore.DetectedInterval{Index: s.Index, EntryM: s.EntryM, ApexM: s.ApexM, ExitM: s.ExitM}
	}
	matches := trackstore.MatchCorners(detected, records)
	for _, m := range matches {
		if m.Record != nil {
			out[m.Detected.Index] = m.Record.Name
		}
	}
	return out
}

// diagnose classifies a CornerDelta per §4.7's priority-ranking rules.
func diagnose(d compare.CornerDelta, candidate, reference *lap.NormalisedLap) Diagnosis {
	switch {
	case d.BrakingPointDeltaM > diagBrakingPointThresholdM && d.MinSpeedDelta < diagMinSpeedDeltaThreshold:
		return DiagnosisLateBrakeOverSlow
	case d.BrakingPointDeltaM < -diagBrakingPointThresholdM && peakBrakeIn(candidate, d.EntryM, d.ExitM) < diagEarlyLiftMaxBrake:
		return DiagnosisEarlyLift
	case d.MinSpeedDelta < diagTightLineSpeedDelta && d.BrakingPointDeltaM >= -diagBrakingPointThresholdM && d.BrakingPointDeltaM <= diagBrakingPointThresholdM:
		return DiagnosisTightLine
	case d.ThrottleApplicationDeltaM < diagThrottleDeltaThreshold && exitSpeedLower(candidate, reference, d.ExitM):
		return DiagnosisEarlyThrottleLossOfDrive
	default:
		return DiagnosisOther
	}
}

func peakBrakeIn(nl *lap.NormalisedLap, entry, exit int) float64 {
	if exit >= len(nl.Brake) {
		exit = len(nl.Brake) - 1
	}
	max := 0.0
	for i := entry; i <= exit; i++ {
		if nl.Brake[i] > max {
			max = nl.Brake[i]
		}
	}
	return max
}

// exitSpeedLower reports whether the candidate's speed 100 m past exitM
// is lower than the reference's, per §4.7's early_throttle_loss_of_drive
// rule.
func exitSpeedLower(candidate, reference *lap.NormalisedLap, exitM int) bool {
	idx := exitM + exitSpeedSampleOffsetM
	if idx >= len(candidate.Speed) || idx >= len(reference.Speed) {
		idx = len(candidate.Speed) - 1
		if idx >= len(reference.Speed) {
			idx = len(reference.Speed) - 1
		}
	}
	if idx < 0 {
		return false
	}
	return candidate.Speed[idx] < reference.Speed[idx]
}

func absF(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}
