package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the lookup journal. It never holds tokens or backend data, only
// when a lookup ran, how it ended and how long it took.
type Store struct {
	db *sql.DB
}

// LookupEntry is one journal row
type LookupEntry struct {
	ID        int
	StartedAt time.Time
	Outcome   string
	Elapsed   time.Duration
}

// New creates a new Store with the database at the given path
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		schema, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(schema)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}

	return nil
}

// RecordLookup appends a journal entry
func (s *Store) RecordLookup(at time.Time, outcome string, elapsed time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO lookups (started_at, outcome, elapsed_ms)
		VALUES (?, ?, ?)
	`, at.UnixMilli(), outcome, elapsed.Milliseconds())

	if err != nil {
		return fmt.Errorf("record lookup: %w", err)
	}

	return nil
}

// RecentLookups returns up to limit entries, newest first
func (s *Store) RecentLookups(limit int) ([]LookupEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, outcome, elapsed_ms
		FROM lookups
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent lookups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []LookupEntry
	for rows.Next() {
		var entry LookupEntry
		var startedMs, elapsedMs int64
		if err := rows.Scan(&entry.ID, &startedMs, &entry.Outcome, &elapsedMs); err != nil {
			return nil, fmt.Errorf("scan lookup: %w", err)
		}
		entry.StartedAt = time.UnixMilli(startedMs)
		entry.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// OutcomeCounts returns how many journal entries ended with each outcome
func (s *Store) OutcomeCounts() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT outcome, COUNT(*) FROM lookups GROUP BY outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}

	return counts, rows.Err()
}
