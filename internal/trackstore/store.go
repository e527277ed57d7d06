// Package trackstore implements the track store (C5): persisted tracks
// and named corners, a landmarks-dataset seeder, and (C6) the corner
// registry matching detected segments to named records.
package trackstore

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/telemetry-core/internal/errs"
	"github.com/banshee-data/telemetry-core/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TrackType mirrors the detector's preset keys for a persisted track.
type TrackType string

const (
	TrackRoad   TrackType = "road"
	TrackStreet TrackType = "street"
	TrackOval   TrackType = "oval"
)

// Character describes a track's driving character.
type Character string

const (
	CharacterMomentum      Character = "momentum"
	CharacterPointAndShoot Character = "point_and_shoot"
	CharacterMixed         Character = "mixed"
)

// TrackRecord is a persisted track configuration.
type TrackRecord struct {
	TrackID      string
	Name         string
	Config       string
	LengthMeters float64
	TrackType    TrackType
	Character    Character
	Notes        string
}

// CornerRecord is a persisted named corner belonging to a track.
type CornerRecord struct {
	CornerID            int64
	TrackID             string
	CornerNumber        int
	Name                string
	DistanceStartMeters float64
	DistanceEndMeters   float64
	CornerType          string
	Notes               string
}

// Store is the Track Store: the only shared mutable resource in the
// system (§5). Readers may proceed concurrently; seeding acquires an
// exclusive lock for the duration of one atomic transaction.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if absent) the SQLite-backed track store at path
// and brings its schema to the latest migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.TrackStoreUnavailable, err, "open %q", path)
	}
	if err := db.Ping(); err != nil {
		return nil, errs.Wrap(errs.TrackStoreUnavailable, err, "ping %q", path)
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		return nil, errs.Wrap(errs.TrackStoreUnavailable, err, "migrate %q", path)
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// UpsertTrack inserts or updates a track record.
func (s *Store) UpsertTrack(t TrackRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.db.Exec(`
		INSERT INTO tracks (track_id, name, config, length_meters, track_type, character, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			name=excluded.name, config=excluded.config, length_meters=excluded.length_meters,
			track_type=excluded.track_type, character=excluded.character, notes=excluded.notes
	`, t.TrackID, t.Name, t.Config, t.LengthMeters, string(t.TrackType), string(t.Character), t.Notes)
	if err != nil {
		return fmt.Errorf("upsert track %q: %w", t.TrackID, err)
	}
	return nil
}

// GetTrack looks up a track by id.
func (s *Store) GetTrack(trackID string) (*TrackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`
		SELECT track_id, name, config, length_meters, track_type, character, notes
		FROM tracks WHERE track_id = ?
	`, trackID)

	var t TrackRecord
	var trackType, character string
	if err := row.Scan(&t.TrackID, &t.Name, &t.Config, &t.LengthMeters, &trackType, &character, &t.Notes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get track %q: %w", trackID, err)
	}
	t.TrackType = TrackType(trackType)
	t.Character = Character(character)
	return &t, nil
}

// UpsertCorners replaces all corners for a track in one atomic
// transaction: delete-then-reinsert, mirroring the upstream track DB's
// replace-all policy for child rows.
func (s *Store) UpsertCorners(trackID string, corners []CornerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin corner upsert for %q: %w", trackID, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM corners WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("clear corners for %q: %w", trackID, err)
	}
	for _, c := range corners {
		if _, err := tx.Exec(`
			INSERT INTO corners (track_id, corner_number, name, distance_start_meters, distance_end_meters, corner_type, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, trackID, c.CornerNumber, c.Name, c.DistanceStartMeters, c.DistanceEndMeters, c.CornerType, c.Notes); err != nil {
			return fmt.Errorf("insert corner %d for %q: %w", c.CornerNumber, trackID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit corners for %q: %w", trackID, err)
	}
	return nil
}

// ListCorners returns a track's corners ordered by distance_start_meters.
func (s *Store) ListCorners(trackID string) ([]CornerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT corner_id, track_id, corner_number, name, distance_start_meters, distance_end_meters, corner_type, notes
		FROM corners WHERE track_id = ? ORDER BY distance_start_meters
	`, trackID)
	if err != nil {
		return nil, fmt.Errorf("list corners for %q: %w", trackID, err)
	}
	defer rows.Close()

	var out []CornerRecord
	for rows.Next() {
		var c CornerRecord
		var name, cornerType, notes sql.NullString
		if err := rows.Scan(&c.CornerID, &c.TrackID, &c.CornerNumber, &name, &c.DistanceStartMeters, &c.DistanceEndMeters, &cornerType, &notes); err != nil {
			return nil, fmt.Errorf("scan corner row: %w", err)
		}
		c.Name = name.String
		c.CornerType = cornerType.String
		c.Notes = notes.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasNamedCorners reports whether any corner for trackID has a non-empty
// name, gating lazy landmark seeding (§4.5).
func (s *Store) HasNamedCorners(trackID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM corners WHERE track_id = ? AND name IS NOT NULL AND name != ''
	`, trackID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check named corners for %q: %w", trackID, err)
	}
	return count > 0, nil
}

// logf routes the store's diagnostics through the shared monitoring hook
// rather than calling log.Printf directly.
func logf(format string, args ...any) { monitoring.Logf("trackstore: "+format, args...) }
