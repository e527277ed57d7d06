package trackstore

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/telemetry-core/internal/errs"
)

//go:embed landmarks/trackLandmarksData.json
var defaultLandmarksFS embed.FS

// landmarkEntry is one row of the external landmarks document: either a
// native-sim entry (IRTrackName set) or a cross-sim-only entry resolved
// via the alternate-simulator name fields.
type landmarkEntry struct {
	IRTrackName      string          `json:"irTrackName"`
	PcarsTrackName   string          `json:"pcarsTrackName"`
	ACTrackNames     json.RawMessage `json:"acTrackNames"`
	RF1TrackNames    json.RawMessage `json:"rf1TrackNames"`
	TrackLandmarks   []landmark      `json:"trackLandmarks"`
}

type landmark struct {
	LandmarkName             string  `json:"landmarkName"`
	DistanceRoundLapStart    float64 `json:"distanceRoundLapStart"`
	DistanceRoundLapEnd      float64 `json:"distanceRoundLapEnd"`
	IsCommonOvertakingSpot   bool    `json:"isCommonOvertakingSpot"`
}

type landmarksDocument struct {
	TrackLandmarksData []landmarkEntry `json:"TrackLandmarksData"`
}

// DefaultLandmarksSnapshot opens the module's embedded landmarks
// snapshot. §6 treats the dataset as a consumed snapshot; refreshing it
// is an operator action (replacing this embedded file), not a runtime
// fetch.
func DefaultLandmarksSnapshot() (io.ReadCloser, error) {
	return defaultLandmarksFS.Open("landmarks/trackLandmarksData.json")
}

// SeedFromLandmarksDataset imports the landmarks document from source,
// resolving each entry to a native track id via the direct map (first
// pass) or the cross-sim map (second pass, only for entries carrying no
// native key), and seeding any track lacking named corners.
//
// Seeding is atomic per track: the track upsert and the replacement of its
// corners run in one transaction (see seedOneTrack), so a failure partway
// through leaves
// prior state intact, and no half-seeded track becomes visible.
func (s *Store) SeedFromLandmarksDataset(source io.Reader) (seeded map[string]bool, err error) {
	raw, err := io.ReadAll(source)
	if err != nil {
		return nil, errs.Wrap(errs.SeedingFailed, err, "read landmarks document")
	}
	var doc landmarksDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errs.Wrap(errs.SeedingFailed, err, "parse landmarks document")
	}

	seeded = make(map[string]bool)
	matchedXsim := make(map[string]bool)

	// Entries carrying a native key are seeded before any cross-sim-only
	// entry, so a direct match for a track id wins over a cross-sim one
	// (seedOneTrack skips tracks that already have named corners).
	entries := make([]landmarkEntry, 0, len(doc.TrackLandmarksData))
	for _, entry := range doc.TrackLandmarksData {
		if entry.IRTrackName != "" {
			entries = append(entries, entry)
		}
	}
	for _, entry := range doc.TrackLandmarksData {
		if entry.IRTrackName == "" {
			entries = append(entries, entry)
		}
	}

	for _, entry := range entries {
		if len(entry.TrackLandmarks) == 0 {
			continue
		}

		key := entry.IRTrackName
		if key == "" {
			xsimKey, ok := matchCrossSim(entry)
			if !ok || matchedXsim[xsimKey] {
				continue
			}
			matchedXsim[xsimKey] = true
			key = xsimKey
		}

		mapping, ok := directMap[key]
		if !ok {
			continue // dataset entry with no native mapping: not an error (§4.5)
		}

		ok, seedErr := s.seedOneTrack(mapping, entry.TrackLandmarks)
		if seedErr != nil {
			return seeded, errs.Wrap(errs.SeedingFailed, seedErr, "seed track %q", mapping.TrackID)
		}
		seeded[key] = ok
	}
	return seeded, nil
}

// matchCrossSim resolves an entry with no native key to a canonical
// xsim_ key via its alternate-simulator name fields.
func matchCrossSim(entry landmarkEntry) (string, bool) {
	for canonicalKey, crit := range crossSimMap {
		switch crit.Field {
		case "pcarsTrackName":
			if entry.PcarsTrackName == crit.Value {
				return canonicalKey, true
			}
		case "acTrackNames":
			if jsonStringListContains(entry.ACTrackNames, crit.Value) {
				return canonicalKey, true
			}
		case "rf1TrackNames":
			if jsonStringListContains(entry.RF1TrackNames, crit.Value) {
				return canonicalKey, true
			}
		}
	}
	return "", false
}

func jsonStringListContains(raw json.RawMessage, want string) bool {
	if len(raw) == 0 {
		return false
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single == want
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			if v == want {
				return true
			}
		}
	}
	return false
}

// seedOneTrack upserts one track and its named corners atomically,
// skipping tracks that already have named corners (lazy seeding, §4.5).
func (s *Store) seedOneTrack(mapping trackMapping, landmarks []landmark) (bool, error) {
	has, err := s.HasNamedCorners(mapping.TrackID)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	corners := make([]CornerRecord, len(landmarks))
	for i, lm := range landmarks {
		notes := ""
		if lm.IsCommonOvertakingSpot {
			notes = "Common overtaking spot"
		}
		corners[i] = CornerRecord{
			CornerNumber:         i + 1,
			Name:                 formatCornerName(lm.LandmarkName),
			DistanceStartMeters: lm.DistanceRoundLapStart,
			DistanceEndMeters:   lm.DistanceRoundLapEnd,
			Notes:                notes,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO tracks (track_id, name, config, length_meters, track_type, character, notes)
		VALUES (?, ?, ?, 0, 'road', '', '')
		ON CONFLICT(track_id) DO UPDATE SET name=excluded.name, config=excluded.config
	`, mapping.TrackID, mapping.Name, mapping.Config); err != nil {
		return false, fmt.Errorf("upsert track %q: %w", mapping.TrackID, err)
	}

	if _, err := tx.Exec(`DELETE FROM corners WHERE track_id = ?`, mapping.TrackID); err != nil {
		return false, fmt.Errorf("clear corners for %q: %w", mapping.TrackID, err)
	}
	for _, c := range corners {
		if _, err := tx.Exec(`
			INSERT INTO corners (track_id, corner_number, name, distance_start_meters, distance_end_meters, corner_type, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, mapping.TrackID, c.CornerNumber, c.Name, c.DistanceStartMeters, c.DistanceEndMeters, c.CornerType, c.Notes); err != nil {
			return false, fmt.Errorf("insert corner %d for %q: %w", c.CornerNumber, mapping.TrackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed for %q: %w", mapping.TrackID, err)
	}

	logf("seeded %d corners for %s (track_id=%s)", len(corners), mapping.Name, mapping.TrackID)
	return true, nil
}
