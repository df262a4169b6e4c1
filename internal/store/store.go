// Package store persists imported API specs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"yasp/internal/reconcile"
)

var ErrNotFound = errors.New("store: record not found")

// Record is one imported API.
type Record struct {
	ID              string                   `json:"id"`
	Name            string                   `json:"name"`
	Endpoint        string                   `json:"endpoint"`
	SpecURL         string                   `json:"specUrl,omitempty"`
	Format          reconcile.Format         `json:"format"`
	Content         string                   `json:"content,omitempty"`
	Servers         []reconcile.ServerConfig `json:"servers"`
	Valid           bool                     `json:"valid"`
	ValidationError string                   `json:"validationError,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// ListOptions pages through records, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store handles persistence of API records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS apis (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	spec_url TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL,
	content TEXT NOT NULL,
	servers TEXT NOT NULL DEFAULT '[]',
	valid BOOLEAN NOT NULL,
	validation_error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_apis_created_at ON apis(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_apis_name ON apis(name);
`

// timeLayout is fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Create assigns an ID and timestamps and inserts rec.
func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	now := s.now().UTC()
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	servers, err := encodeServers(rec.Servers)
	if err != nil {
		return Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO apis (
			id, name, endpoint, spec_url, format, content, servers,
			valid, validation_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Name, rec.Endpoint, rec.SpecURL, string(rec.Format), rec.Content, servers,
		rec.Valid, rec.ValidationError, now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert api: %w", err)
	}
	return rec, nil
}

// Update replaces everything but ID and CreatedAt.
func (s *Store) Update(ctx context.Context, rec Record) (Record, error) {
	existing, err := s.Get(ctx, rec.ID)
	if err != nil {
		return Record{}, err
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = s.now().UTC()

	servers, err := encodeServers(rec.Servers)
	if err != nil {
		return Record{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE apis SET
			name = ?, endpoint = ?, spec_url = ?, format = ?, content = ?, servers = ?,
			valid = ?, validation_error = ?, updated_at = ?
		WHERE id = ?
	`,
		rec.Name, rec.Endpoint, rec.SpecURL, string(rec.Format), rec.Content, servers,
		rec.Valid, rec.ValidationError, rec.UpdatedAt.Format(timeLayout), rec.ID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("update api: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, endpoint, spec_url, format, content, servers,
		       valid, validation_error, created_at, updated_at
		FROM apis WHERE id = ?
	`, id)
	rec, err := scanRecord(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns records without their content.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	limit := 100
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, endpoint, spec_url, format, '', servers,
		       valid, validation_error, created_at, updated_at
		FROM apis
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query apis: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate apis: %w", err)
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM apis WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete api: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, withContent bool) (Record, error) {
	var (
		rec                  Record
		format, servers      string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Endpoint,
		&rec.SpecURL,
		&format,
		&rec.Content,
		&servers,
		&rec.Valid,
		&rec.ValidationError,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan api: %w", err)
	}
	if !withContent {
		rec.Content = ""
	}
	rec.Format = reconcile.Format(format)
	if err := json.Unmarshal([]byte(servers), &rec.Servers); err != nil {
		return Record{}, fmt.Errorf("decode servers: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return rec, nil
}

func encodeServers(servers []reconcile.ServerConfig) (string, error) {
	if servers == nil {
		servers = []reconcile.ServerConfig{}
	}
	data, err := json.Marshal(servers)
	if err != nil {
		return "", fmt.Errorf("encode servers: %w", err)
	}
	return string(data), nil
}
