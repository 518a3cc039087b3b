// Package sqlite implements the subject registry backed by a SQLite
// database, for deployments where registrations must survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/helewild/gridhud/internal/domain"
	"github.com/helewild/gridhud/internal/registry"
)

const defaultMaxOpenConns = 10
const defaultMaxIdleConns = 10

// Store wraps a SQLite database connection. It satisfies [registry.Store].
type Store struct {
	db         *sql.DB
	classifier registry.Classifier
}

// OpenOptions controls SQLite connection pool sizing.
type OpenOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open creates or opens the SQLite database at path, runs migrations, and
// enables WAL mode for improved concurrent read performance. New subjects
// are classified by c; nil falls back to the static default label.
func Open(path string, c registry.Classifier) (*Store, error) {
	return OpenWithOptions(path, c, OpenOptions{})
}

// OpenWithOptions creates or opens the SQLite database at path with tunable
// connection pool settings, runs migrations, and enables WAL mode.
func OpenWithOptions(path string, c registry.Classifier, opts OpenOptions) (*Store, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	// Append per-connection PRAGMAs to the DSN so every pooled connection gets them.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=synchronous(normal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	maxOpenConns := opts.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = defaultMaxOpenConns
	}
	maxIdleConns := opts.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = defaultMaxIdleConns
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	// journal_mode and busy_timeout are database-wide; set them once here.
	// foreign_keys and synchronous are per-connection and ride the DSN.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite setup (%s): %w", pragma, err)
		}
	}

	if c == nil {
		c = registry.NewStatic("")
	}
	s := &Store{db: db, classifier: c}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	affiliation TEXT NOT NULL,
	region TEXT NOT NULL DEFAULT '',
	callback_url TEXT NOT NULL DEFAULT '',
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subjects_last_seen ON subjects(last_seen DESC);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Upsert records a registration in a single statement so concurrent
// registrations for the same subject cannot interleave. The raw submitted
// name drives the update branch: empty fields never clobber stored values,
// while a brand-new unnamed subject gets the unknown sentinel.
func (s *Store) Upsert(ctx context.Context, reg domain.Registration, now time.Time) (domain.Subject, error) {
	if reg.ID == "" {
		return domain.Subject{}, &domain.RegistryError{Op: "upsert", Err: domain.ErrMalformedPayload}
	}

	createName := reg.Name
	if createName == "" {
		createName = domain.UnknownName
	}
	affiliation := s.classifier.Classify(reg.ID, reg.Name)
	ts := now.Unix()

	var sub domain.Subject
	err := s.db.QueryRowContext(ctx, `
INSERT INTO subjects(id, name, affiliation, region, callback_url, first_seen, last_seen)
VALUES(?1, ?2, ?3, ?4, ?5, ?6, ?6)
ON CONFLICT(id) DO UPDATE SET
	name = CASE WHEN ?7 <> '' THEN ?7 ELSE subjects.name END,
	region = CASE WHEN ?4 <> '' THEN ?4 ELSE subjects.region END,
	callback_url = CASE WHEN ?5 <> '' THEN ?5 ELSE subjects.callback_url END,
	last_seen = ?6
RETURNING id, name, affiliation, region, callback_url, first_seen, last_seen`,
		reg.ID, createName, affiliation, reg.Region, reg.CallbackURL, ts, reg.Name,
	).Scan(&sub.ID, &sub.Name, &sub.Affiliation, &sub.Region, &sub.CallbackURL, &sub.FirstSeen, &sub.LastSeen)
	if err != nil {
		return domain.Subject{}, &domain.RegistryError{SubjectID: reg.ID, Op: "upsert", Err: err}
	}
	return sub, nil
}

// Lookup resolves ids in input order, filling the unknown sentinel for
// subjects never registered.
func (s *Store) Lookup(ctx context.Context, ids []string, now time.Time) ([]domain.ScanResult, error) {
	if len(ids) == 0 {
		return []domain.ScanResult{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, affiliation, region, callback_url, first_seen, last_seen
FROM subjects
WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, &domain.RegistryError{Op: "lookup", Err: err}
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]domain.Subject, len(ids))
	for rows.Next() {
		var sub domain.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Affiliation, &sub.Region, &sub.CallbackURL, &sub.FirstSeen, &sub.LastSeen); err != nil {
			return nil, &domain.RegistryError{Op: "lookup", Err: err}
		}
		found[sub.ID] = sub
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.RegistryError{Op: "lookup", Err: err}
	}
	return registry.ShapeResults(ids, found, now), nil
}

// List returns every known subject, most recently seen first.
func (s *Store) List(ctx context.Context) ([]domain.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, affiliation, region, callback_url, first_seen, last_seen
FROM subjects
ORDER BY last_seen DESC, id ASC`)
	if err != nil {
		return nil, &domain.RegistryError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Subject
	for rows.Next() {
		var sub domain.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Affiliation, &sub.Region, &sub.CallbackURL, &sub.FirstSeen, &sub.LastSeen); err != nil {
			return nil, &domain.RegistryError{Op: "list", Err: err}
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.RegistryError{Op: "list", Err: err}
	}
	return out, nil
}

func ensureParentDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
