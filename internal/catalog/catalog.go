// Package catalog keeps decoded commands in a SQLite database so they can be
// listed and re-exported without the original capture files.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

// ErrNotFound is returned when no command has the requested name.
var ErrNotFound = errors.New("command not found")

// Record is one stored command.
type Record struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	Source        string              `json:"source"`
	Durations     trace.Durations     `json:"durations"`
	Bytes         decode.CommandBytes `json:"bytes"`
	Summary       string              `json:"summary"`
	ChecksumValid bool                `json:"checksum_valid"`
	Diagnostics   []string            `json:"diagnostics,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewRecord fills a Record from a decode result.
func NewRecord(name, source string, res *decode.Result) Record {
	r := Record{
		Name:      name,
		Source:    source,
		Durations: res.Signal,
		Bytes:     res.Bytes,
	}
	if res.Command != nil {
		r.Summary = res.Command.Summary()
		r.ChecksumValid = res.Command.ChecksumValid
	}
	for _, d := range res.Diagnostics {
		r.Diagnostics = append(r.Diagnostics, d.String())
	}
	return r
}

// Store is a SQLite backed command catalog.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the catalog at path and applies migrations.
// Use ":memory:" for a throwaway catalog.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and avoids
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure catalog: %w", err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts r, or replaces the stored command with the same name while
// keeping its ID and creation time. The stored record is returned.
func (s *Store) Save(ctx context.Context, r Record) (Record, error) {
	if r.Name == "" {
		return Record{}, errors.New("record name is required")
	}
	blob, err := encodeDurations(r.Durations)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode durations: %w", err)
	}
	raw := []byte(r.Bytes)
	if raw == nil {
		raw = []byte{}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := s.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands (id, name, source, durations, bytes, summary, checksum_valid, diagnostics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			durations = excluded.durations,
			bytes = excluded.bytes,
			summary = excluded.summary,
			checksum_valid = excluded.checksum_valid,
			diagnostics = excluded.diagnostics,
			updated_at = excluded.updated_at`,
		r.ID.String(), r.Name, r.Source, blob, raw, r.Summary,
		r.ChecksumValid, strings.Join(r.Diagnostics, "\n"), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("failed to save %s: %w", r.Name, err)
	}

	return s.Get(ctx, r.Name)
}

const selectColumns = `id, name, source, durations, bytes, summary, checksum_valid, diagnostics, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r     Record
		id    string
		blob  []byte
		raw   []byte
		diags string
	)
	if err := row.Scan(&id, &r.Name, &r.Source, &blob, &raw, &r.Summary, &r.ChecksumValid, &diags, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Record{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Record{}, fmt.Errorf("bad id %q: %w", id, err)
	}
	r.ID = parsed
	if r.Durations, err = decodeDurations(blob); err != nil {
		return Record{}, err
	}
	r.Bytes = decode.CommandBytes(raw)
	if diags != "" {
		r.Diagnostics = strings.Split(diags, "\n")
	}
	return r, nil
}

// Get returns the command stored under name.
func (s *Store) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM commands WHERE name = ?`, name)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return r, nil
}

// List returns every stored command, oldest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM commands ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes the command stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
