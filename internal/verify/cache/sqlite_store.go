package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// dbOutcomeRow is the L2 wire shape for a cached outcome: a flat,
// JSON-friendly projection of types.DbOutcome's Found/NotFound cases
// (Error is never persisted, so it has no row shape).
type dbOutcomeRow struct {
	found      bool
	foundTitle string
	authors    []string
	url        string
}

func toRow(o types.DbOutcome) dbOutcomeRow {
	if o.IsFound() {
		return dbOutcomeRow{found: true, foundTitle: o.FoundTitle, authors: o.Authors, url: o.URL}
	}
	return dbOutcomeRow{}
}

func fromRow(r dbOutcomeRow) types.DbOutcome {
	if r.found {
		return types.Found(r.foundTitle, r.authors, r.url)
	}
	return types.NotFound()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS query_cache (
	normalized_title TEXT NOT NULL,
	db_name          TEXT NOT NULL,
	found            INTEGER NOT NULL,
	found_title      TEXT,
	authors          TEXT,
	paper_url        TEXT,
	inserted_at      INTEGER NOT NULL,
	PRIMARY KEY (normalized_title, db_name)
);`

// sqliteStore is L2: an on-disk SQLite table guarded by one process-wide
// mutex, each operation a single statement (a get that finds an expired
// row also issues one DELETE for it), with the WAL/busy_timeout
// pragmas set once at open time.
type sqliteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func openSQLiteStore(path string) (*sqliteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open query cache database at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer model; serialize via the mutex too

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA synchronous = NORMAL;`,
		`PRAGMA busy_timeout = 5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", strings.TrimSpace(pragma), err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create query_cache schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *sqliteStore) get(key cacheKey, positiveTTL, negativeTTL time.Duration) (types.DbOutcome, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found int
	var foundTitle, authorsJSON, paperURL sql.NullString
	var insertedEpoch int64

	row := s.db.QueryRow(
		`SELECT found, found_title, authors, paper_url, inserted_at
		 FROM query_cache WHERE normalized_title = ? AND db_name = ?`,
		key.normalizedTitle, key.backend,
	)
	if err := row.Scan(&found, &foundTitle, &authorsJSON, &paperURL, &insertedEpoch); err != nil {
		return types.DbOutcome{}, time.Time{}, false
	}

	// Age from the stored epoch, then an L1 instant rebuilt from the
	// monotonic clock as now minus that age.
	age := time.Since(time.Unix(insertedEpoch, 0))
	when := time.Now().Add(-age)
	ttl := negativeTTL
	if found != 0 {
		ttl = positiveTTL
	}
	if age > ttl {
		_, _ = s.db.Exec(`DELETE FROM query_cache WHERE normalized_title = ? AND db_name = ?`,
			key.normalizedTitle, key.backend)
		return types.DbOutcome{}, time.Time{}, false
	}

	var authors []string
	if authorsJSON.Valid && authorsJSON.String != "" {
		_ = json.Unmarshal([]byte(authorsJSON.String), &authors)
	}

	return fromRow(dbOutcomeRow{
		found:      found != 0,
		foundTitle: foundTitle.String,
		authors:    authors,
		url:        paperURL.String,
	}), when, true
}

func (s *sqliteStore) insert(key cacheKey, outcome types.DbOutcome, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := toRow(outcome)
	authorsJSON, _ := json.Marshal(row.authors)
	found := 0
	if row.found {
		found = 1
	}

	// Best-effort write: the caller (Cache.Insert) does not propagate this
	// error — an L2 I/O failure on insert is silently ignored.
	_, _ = s.db.Exec(
		`INSERT INTO query_cache (normalized_title, db_name, found, found_title, authors, paper_url, inserted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (normalized_title, db_name) DO UPDATE SET
			found = excluded.found,
			found_title = excluded.found_title,
			authors = excluded.authors,
			paper_url = excluded.paper_url,
			inserted_at = excluded.inserted_at`,
		key.normalizedTitle, key.backend, found, row.foundTitle, string(authorsJSON), row.url, at.Unix(),
	)
}

func (s *sqliteStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(`DELETE FROM query_cache`)
}

// evictExpired removes every row past its TTL in a single statement, run
// once eagerly at open time.
func (s *sqliteStore) evictExpired(positiveTTL, negativeTTL time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Fractional-second cutoffs, so a row counts as expired exactly when
	// get's now-minus-stored-epoch age exceeds its TTL.
	now := time.Now()
	posCutoff := float64(now.Add(-positiveTTL).UnixNano()) / 1e9
	negCutoff := float64(now.Add(-negativeTTL).UnixNano()) / 1e9

	_, _ = s.db.Exec(
		`DELETE FROM query_cache WHERE
			(found = 1 AND inserted_at < ?) OR
			(found = 0 AND inserted_at < ?)`,
		posCutoff, negCutoff,
	)
}

func (s *sqliteStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM query_cache`).Scan(&n)
	return n
}
