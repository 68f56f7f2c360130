package track

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists reference laps in a SQLite database. Stored samples are
// spline-offset corrected; load them with Data.AddCorrectedLap.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS reference_laps (
	track_id   TEXT NOT NULL,
	class      TEXT NOT NULL,
	lap_time   REAL NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (track_id, class)
);
CREATE TABLE IF NOT EXISTS reference_lap_samples (
	track_id TEXT NOT NULL,
	class    TEXT NOT NULL,
	idx      INTEGER NOT NULL,
	pos      REAL NOT NULL,
	seconds  REAL NOT NULL,
	PRIMARY KEY (track_id, class, idx)
);
CREATE TABLE IF NOT EXISTS spline_offsets (
	track_id TEXT PRIMARY KEY,
	spline_offset REAL NOT NULL
);`

// OpenStore opens (creating if needed) the SQLite database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening lap store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating lap store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveLap replaces the reference lap of class on trackID.
func (s *Store) SaveLap(trackID, class string, samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples for %s on %s", class, trackID)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM reference_lap_samples WHERE track_id = ? AND class = ?`, trackID, class); err != nil {
		return fmt.Errorf("deleting old samples: %w", err)
	}
	lapTime := samples[len(samples)-1].Time.Seconds()
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO reference_laps (track_id, class, lap_time, created_at) VALUES (?, ?, ?, ?)`,
		trackID, class, lapTime, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("inserting reference lap: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO reference_lap_samples (track_id, class, idx, pos, seconds) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing sample insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for i, smp := range samples {
		if _, err := stmt.Exec(trackID, class, i, smp.Pos, smp.Time.Seconds()); err != nil {
			return fmt.Errorf("inserting sample %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadTrack returns all stored reference laps for trackID keyed by class.
func (s *Store) LoadTrack(trackID string) (map[string][]Sample, error) {
	rows, err := s.db.Query(
		`SELECT class, pos, seconds FROM reference_lap_samples WHERE track_id = ? ORDER BY class, idx`,
		trackID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	laps := make(map[string][]Sample)
	for rows.Next() {
		var (
			class   string
			pos     float64
			seconds float64
		)
		if err := rows.Scan(&class, &pos, &seconds); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		laps[class] = append(laps[class], Sample{Pos: pos, Time: time.Duration(seconds * float64(time.Second))})
	}
	return laps, rows.Err()
}

// LapSummary describes one stored reference lap.
type LapSummary struct {
	TrackID    string
	Class      string
	LapTime    time.Duration
	NumSamples int
}

// ListLaps returns a summary of all stored reference laps ordered by track and class.
func (s *Store) ListLaps() ([]LapSummary, error) {
	rows, err := s.db.Query(`
		SELECT l.track_id, l.class, l.lap_time, COUNT(s.idx)
		FROM reference_laps l
		LEFT JOIN reference_lap_samples s ON s.track_id = l.track_id AND s.class = l.class
		GROUP BY l.track_id, l.class
		ORDER BY l.track_id, l.class`)
	if err != nil {
		return nil, fmt.Errorf("querying laps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LapSummary
	for rows.Next() {
		var (
			ls      LapSummary
			lapTime float64
		)
		if err := rows.Scan(&ls.TrackID, &ls.Class, &lapTime, &ls.NumSamples); err != nil {
			return nil, fmt.Errorf("scanning lap: %w", err)
		}
		ls.LapTime = time.Duration(lapTime * float64(time.Second))
		out = append(out, ls)
	}
	return out, rows.Err()
}

// SetSplineOffset stores the spline position correction for trackID.
func (s *Store) SetSplineOffset(trackID string, offset float64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO spline_offsets (track_id, spline_offset) VALUES (?, ?)`, trackID, offset)
	if err != nil {
		return fmt.Errorf("storing spline offset: %w", err)
	}
	return nil
}

// SplineOffset returns the stored spline position correction for trackID, or 0.
func (s *Store) SplineOffset(trackID string) (float64, error) {
	var offset float64
	err := s.db.QueryRow(`SELECT spline_offset FROM spline_offsets WHERE track_id = ?`, trackID).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying spline offset: %w", err)
	}
	return offset, nil
}
