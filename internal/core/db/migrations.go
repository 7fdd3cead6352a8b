package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/x12keeper/migrations"
)

// ErrMigrationChecksum reports an applied migration whose embedded file no
// longer matches what was recorded, or which is no longer embedded at all.
var ErrMigrationChecksum = errors.New("migration checksum mismatch")

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration is one embedded .sql file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// appliedRecord is one row of the migrations table.
type appliedRecord struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   any    `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

const (
	sqliteMigrationsTable = `CREATE TABLE IF NOT EXISTS migrations (
	migration_id TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	applied_at TEXT NOT NULL,
	execution_ms INTEGER NOT NULL,
	CHECK (applied_at LIKE '____-__-__T__:__:__Z')
)`
	postgresMigrationsTable = `CREATE TABLE IF NOT EXISTS migrations (
	migration_id TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
	execution_ms INTEGER NOT NULL
)`
)

// migrator applies the embedded migrations for one database dialect.
type migrator struct {
	db    *sqlx.DB
	files []migration
}

// newMigrator loads the dialect's migration files and makes sure the
// bookkeeping table exists.
func newMigrator(ctx context.Context, db *sqlx.DB) (*migrator, error) {
	var (
		source embed.FS
		dir    string
		table  string
	)
	switch db.DriverName() {
	case "sqlite3":
		source, dir, table = embeddedmigrations.SqliteMigrations, "sqlite", sqliteMigrationsTable
	case "postgres":
		source, dir, table = embeddedmigrations.PostgresMigrations, "postgres", postgresMigrationsTable
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}

	files, err := loadMigrations(source, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	if _, err := db.ExecContext(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &migrator{db: db, files: files}, nil
}

// MigrateUp applies every pending migration in filename order, each in its
// own transaction. Already-applied migrations are checked against their
// recorded checksum first and nothing runs if any of them drifted.
func MigrateUp(ctx context.Context, db *sqlx.DB) error {
	m, err := newMigrator(ctx, db)
	if err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if err := m.verify(applied); err != nil {
		return err
	}

	for _, file := range m.files {
		if _, ok := applied[file.ID]; ok {
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

// MigrateStatus lists every embedded migration with its applied state.
// It does not apply anything.
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := newMigrator(ctx, db)
	if err != nil {
		return nil, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.files))
	for _, file := range m.files {
		rec, ok := applied[file.ID]
		if !ok {
			statuses = append(statuses, MigrationStatus{ID: file.ID, Checksum: file.Checksum})
			continue
		}
		statuses = append(statuses, MigrationStatus{
			ID:          rec.ID,
			Checksum:    rec.Checksum,
			Applied:     true,
			AppliedAt:   parseAppliedAt(rec.AppliedAt),
			ExecutionMs: rec.ExecutionMs,
		})
	}
	return statuses, nil
}

func (m *migrator) applied(ctx context.Context) (map[string]appliedRecord, error) {
	var rows []appliedRecord
	err := m.db.SelectContext(ctx, &rows,
		"SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	out := make(map[string]appliedRecord, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// verify fails on the first applied migration, in ID order, that is missing
// from the embedded set or whose checksum changed.
func (m *migrator) verify(applied map[string]appliedRecord) error {
	embedded := make(map[string]string, len(m.files))
	for _, f := range m.files {
		embedded[f.ID] = f.Checksum
	}

	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		want, ok := embedded[id]
		if !ok {
			return fmt.Errorf("%w: %s is applied but not embedded", ErrMigrationChecksum, id)
		}
		if got := applied[id].Checksum; got != want {
			return fmt.Errorf("%w: %s recorded %s, embedded %s", ErrMigrationChecksum, id, got, want)
		}
	}
	return nil
}

// apply runs one migration and records it in the same transaction.
func (m *migrator) apply(ctx context.Context, file migration) error {
	start := time.Now()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: begin: %w", file.ID, err)
	}
	defer tx.Rollback()

	for i, stmt := range splitStatements(file.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s: statement %d: %w", file.ID, i+1, err)
		}
	}

	now := time.Now().UTC()
	var appliedAt any = now
	if m.db.DriverName() == "sqlite3" {
		appliedAt = now.Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(
		"INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		file.ID, file.Checksum, appliedAt, time.Since(start).Milliseconds())
	if err != nil {
		return fmt.Errorf("migration %s: record: %w", file.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %s: commit: %w", file.ID, err)
	}
	return nil
}

// loadMigrations reads dir's .sql files sorted by name, checksumming the raw
// bytes with SHA-256.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(content)
		files = append(files, migration{
			ID:       e.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
	}

	// ReadDir already sorts by name
	return files, nil
}

// splitStatements breaks a migration into single statements, since lib/pq
// rejects several statements in one Exec. Migration files carry no
// semicolons inside literals.
func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

// parseAppliedAt normalizes applied_at: PostgreSQL returns TIMESTAMP as
// time.Time, SQLite stores RFC3339 text.
func parseAppliedAt(v any) *time.Time {
	var raw string
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &ts
}
