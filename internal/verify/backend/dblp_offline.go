package backend

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/gianlucasb/hallucinator/internal/verify/normalize"
	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// DblpOffline queries a local, pre-built DBLP SQLite index (schema:
// publications/authors/publication_authors plus the FTS5 virtual table
// publications_fts) instead of the network API. The underlying *sql.DB
// connection is not safe for concurrent use, so every query is serialized
// behind db's own mutex and dispatched on pool.
type DblpOffline struct {
	db   *sql.DB
	mu   sync.Mutex
	pool *BlockingPool
}

// OpenDblpOffline opens path read-only. The caller owns the returned
// backend for the run and must Close it when done.
func OpenDblpOffline(path string, pool *BlockingPool) (*DblpOffline, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open offline DBLP database at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open offline DBLP database at %s: %w", path, err)
	}
	return &DblpOffline{db: db, pool: pool}, nil
}

func (b *DblpOffline) Name() string  { return "DBLP" }
func (b *DblpOffline) IsLocal() bool { return true }

func (b *DblpOffline) Close() error { return b.db.Close() }

func (b *DblpOffline) Query(ctx context.Context, title string) (types.DbOutcome, error) {
	val, err := b.pool.Run(ctx, func() (any, error) {
		return b.queryBlocking(title)
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.Error(types.ErrorCancelled, err.Error()), nil
		}
		return types.Error(types.ErrorOther, err.Error()), nil
	}
	return val.(types.DbOutcome), nil
}

func (b *DblpOffline) queryBlocking(title string) (types.DbOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	query := ftsQuery(title)
	if query == "" {
		return types.NotFound(), nil
	}

	rows, err := b.db.Query(
		`SELECT p.id, p.title FROM publications_fts f
		 JOIN publications p ON p.id = f.rowid
		 WHERE publications_fts MATCH ?
		 ORDER BY rank LIMIT 5`, query)
	if err != nil {
		return types.DbOutcome{}, err
	}
	defer rows.Close()

	type candidate struct {
		id    int64
		title string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.title); err != nil {
			return types.DbOutcome{}, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return types.DbOutcome{}, err
	}

	for _, c := range candidates {
		if !normalize.TitlesMatch(title, c.title) {
			continue
		}
		authors, err := b.authorsFor(c.id)
		if err != nil {
			return types.DbOutcome{}, err
		}
		if len(authors) == 0 {
			continue // empty-authors: let other backends verify
		}
		return types.Found(c.title, stripDblpSuffixes(authors), ""), nil
	}
	return types.NotFound(), nil
}

func (b *DblpOffline) authorsFor(pubID int64) ([]string, error) {
	rows, err := b.db.Query(
		`SELECT a.name FROM authors a
		 JOIN publication_authors pa ON pa.author_id = a.id
		 WHERE pa.pub_id = ?`, pubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		authors = append(authors, name)
	}
	return authors, rows.Err()
}

// ftsQuery builds a simple FTS5 MATCH expression from every word of the
// normalized title (space-separated, which FTS5 reads as an implicit AND).
// Unlike DblpOnline, it does not cut the title down to its leading words.
func ftsQuery(title string) string {
	words := normalize.Title(title)
	if words == "" {
		return ""
	}
	return words
}
