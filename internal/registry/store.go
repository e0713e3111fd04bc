// Package registry keeps the set of packages a peer manages in SQLite.
// Each entry stores a checksummed snapshot of the package descriptor so the
// registry can report completion without rereading manifests.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kk-code-lab/btide/internal/bpkg"
	"github.com/kk-code-lab/btide/internal/clock"
	"github.com/kk-code-lab/btide/internal/pkgchk"
)

const (
	// IdentLen is the number of identifier characters the registry keeps.
	IdentLen = 32
	// MatchLen is the number of leading characters used to match an
	// identifier on removal and lookup.
	MatchLen = 20
)

var (
	ErrNotFound      = errors.New("registry: package not found")
	ErrDuplicate     = errors.New("registry: package already managed")
	ErrIdentTooShort = errors.New("registry: identifier needs at least 20 characters")
)

// Status is the completion state reported for a managed package.
type Status string

const (
	StatusComplete   Status = "COMPLETE"
	StatusIncomplete Status = "INCOMPLETE"
	StatusInvalid    Status = "INVALID"
)

// Entry is one managed package.
type Entry struct {
	Ident        string
	Filename     string
	ManifestPath string
	AddedAt      time.Time
	Descriptor   *bpkg.Descriptor
	Status       Status
	Done         int
	Total        int
}

// Store wraps the SQLite registry database.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Open opens or creates the registry database at the given path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("registry: db path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, clock: clock.RealClock{}}
	if err := store.applyPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock replaces the clock used for added_at timestamps.
func (s *Store) SetClock(c clock.Clock) {
	if c == nil {
		c = clock.RealClock{}
	}
	s.clock = c
}

func (s *Store) applyPragmas(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous=FULL"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return err
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
)`); err != nil {
		return err
	}

	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}
	if version < 1 {
		if err = applyV1(ctx, tx); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(1, ?)", s.clock.Now().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func applyV1(ctx context.Context, tx *sql.Tx) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS packages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ident TEXT NOT NULL UNIQUE,
			filename TEXT NOT NULL,
			manifest_path TEXT NOT NULL,
			snapshot BLOB NOT NULL,
			added_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS packages_ident_prefix_idx ON packages(substr(ident, 1, 20))`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Add loads the manifest name from dir and records it. The stored target
// file path is resolved against dir.
func (s *Store) Add(ctx context.Context, dir, name string) (Entry, error) {
	if strings.TrimSpace(name) == "" {
		return Entry{}, errors.New("registry: manifest name required")
	}
	manifestPath := filepath.Join(dir, name)
	d, err := bpkg.Load(manifestPath)
	if err != nil {
		return Entry{}, err
	}
	snapshot, err := bpkg.MarshalSnapshot(d)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Ident:        trimIdent(d.Ident),
		Filename:     filepath.Join(dir, d.Filename),
		ManifestPath: manifestPath,
		AddedAt:      s.clock.Now(),
		Descriptor:   d,
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO packages(ident, filename, manifest_path, snapshot, added_at) VALUES(?, ?, ?, ?, ?)
ON CONFLICT(ident) DO NOTHING`,
		entry.Ident, entry.Filename, entry.ManifestPath, snapshot, entry.AddedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Entry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Entry{}, err
	}
	if n == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicate, entry.Ident)
	}
	withStatus(&entry)
	return entry, nil
}

// Remove deletes the package whose identifier shares its first 20
// characters with ident.
func (s *Store) Remove(ctx context.Context, ident string) error {
	prefix, err := matchPrefix(ident)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM packages WHERE seq = (SELECT seq FROM packages WHERE substr(ident, 1, 20)=? ORDER BY seq LIMIT 1)", prefix)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return nil
}

// Get returns the package whose identifier shares its first 20 characters
// with ident.
func (s *Store) Get(ctx context.Context, ident string) (Entry, error) {
	prefix, err := matchPrefix(ident)
	if err != nil {
		return Entry{}, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT ident, filename, manifest_path, snapshot, added_at FROM packages WHERE substr(ident, 1, 20)=? ORDER BY seq LIMIT 1", prefix)
	if err != nil {
		return Entry{}, err
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return entries[0], nil
}

// List returns every managed package in the order it was added.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT ident, filename, manifest_path, snapshot, added_at FROM packages ORDER BY seq")
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			entry    Entry
			snapshot []byte
			addedAt  string
		)
		if err := rows.Scan(&entry.Ident, &entry.Filename, &entry.ManifestPath, &snapshot, &addedAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, addedAt); err == nil {
			entry.AddedAt = ts
		}
		d, err := bpkg.UnmarshalSnapshot(snapshot)
		if err != nil {
			return nil, fmt.Errorf("registry: package %s: %w", entry.Ident, err)
		}
		entry.Descriptor = d
		withStatus(&entry)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// withStatus fills in completion from the descriptor. A descriptor whose
// counts cannot form a tree is reported as invalid.
func withStatus(entry *Entry) {
	pkg, err := pkgchk.NewPackage(entry.Descriptor)
	if err != nil {
		entry.Status = StatusInvalid
		entry.Total = len(entry.Descriptor.Chunks)
		return
	}
	entry.Done, entry.Total = pkg.Progress()
	if pkg.Complete() {
		entry.Status = StatusComplete
	} else {
		entry.Status = StatusIncomplete
	}
}

// Package builds the tree for a stored entry.
func (e Entry) Package() (*pkgchk.Package, error) {
	return pkgchk.NewPackage(e.Descriptor)
}

func trimIdent(ident string) string {
	if len(ident) > IdentLen {
		return ident[:IdentLen]
	}
	return ident
}

func matchPrefix(ident string) (string, error) {
	ident = strings.TrimSpace(ident)
	if len(ident) < MatchLen {
		return "", ErrIdentTooShort
	}
	return ident[:MatchLen], nil
}
