// Package cache persists raw external-service responses so that reruns over
// unchanged inputs perform zero network calls.
package cache

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// Stage names one cached pipeline stage. Keys are scoped per stage.
type Stage string

const (
	// StageGeocode caches geocoding search responses keyed by normalized query.
	StageGeocode Stage = "geocode"
	// StageSpatial caches spatial-query responses keyed by the fetch key
	// (coordinate+radius or element type+id).
	StageSpatial Stage = "spatial"
)

// Store is a read-through response cache backed by SQLite.
type Store struct {
	db    *sql.DB
	runID string
}

// Open opens (or creates) the cache database at path and configures WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			stage      TEXT NOT NULL,
			key        TEXT NOT NULL,
			payload    BLOB NOT NULL,
			run_id     TEXT,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (stage, key)
		)`)
	if err != nil {
		return eris.Wrap(err, "cache: migrate")
	}
	return nil
}

// SetRunID tags subsequently stored entries with the run identifier. The tag
// is context metadata only and never affects lookups.
func (s *Store) SetRunID(id string) {
	s.runID = id
}

// Get returns the cached payload for (stage, key), or ok=false on a miss.
func (s *Store) Get(ctx context.Context, stage Stage, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM responses WHERE stage = ? AND key = ?`,
		string(stage), key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: get")
	}
	zap.L().Debug("cache hit", zap.String("stage", string(stage)), zap.String("key", truncateKey(key)))
	return payload, true, nil
}

// Put stores a response payload immediately. A crash mid-run therefore loses
// at most the one in-flight request.
func (s *Store) Put(ctx context.Context, stage Stage, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (stage, key, payload, run_id, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (stage, key) DO UPDATE SET
			payload = excluded.payload,
			run_id = excluded.run_id,
			fetched_at = excluded.fetched_at`,
		string(stage), key, payload, s.runID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return eris.Wrap(err, "cache: put")
	}
	return nil
}

// Count returns the number of entries stored for a stage.
func (s *Store) Count(ctx context.Context, stage Stage) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM responses WHERE stage = ?`, string(stage),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "cache: count")
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NormalizeKey canonicalizes a query string for use as a cache key: NFC
// normalization (diacritics arrive in mixed composition from upstream
// sources), lowercasing, and whitespace collapsing.
func NormalizeKey(q string) string {
	q = norm.NFC.String(q)
	q = strings.ToLower(strings.TrimSpace(q))
	return strings.Join(strings.Fields(q), " ")
}

func truncateKey(key string) string {
	if len(key) > 48 {
		return key[:48]
	}
	return key
}
