// Package store persists studio artifacts (generated images, resume
// analyses) in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ImageRecord is one generated image.
type ImageRecord struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Size      string    `json:"size"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ResumeRecord is one resume analysis.
type ResumeRecord struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url,omitempty"`
	Input     string    `json:"input"`
	Analysis  string    `json:"analysis"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the persistence surface consumed by the studio services.
type Repository interface {
	Ping(ctx context.Context) error
	SaveImage(ctx context.Context, rec *ImageRecord) error
	ListImages(ctx context.Context, limit int) ([]ImageRecord, error)
	SaveResume(ctx context.Context, rec *ResumeRecord) error
	GetResume(ctx context.Context, id string) (*ResumeRecord, error)
	Close() error
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the database at dbPath.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		size TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_created ON images(created_at);

	CREATE TABLE IF NOT EXISTS resumes (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL DEFAULT '',
		input TEXT NOT NULL,
		analysis TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) SaveImage(ctx context.Context, rec *ImageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (id, prompt, size, url, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Prompt, rec.Size, rec.URL, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListImages(ctx context.Context, limit int) ([]ImageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, size, url, created_at FROM images ORDER BY created_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var out []ImageRecord
	for rows.Next() {
		var rec ImageRecord
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Prompt, &rec.Size, &rec.URL, &created); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveResume(ctx context.Context, rec *ResumeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resumes (id, source_url, input, analysis, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceURL, rec.Input, rec.Analysis, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert resume: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetResume(ctx context.Context, id string) (*ResumeRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, input, analysis, created_at FROM resumes WHERE id = ?`, id)

	var rec ResumeRecord
	var created int64
	err := row.Scan(&rec.ID, &rec.SourceURL, &rec.Input, &rec.Analysis, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan resume row: %w", err)
	}
	rec.CreatedAt = time.Unix(created, 0)
	return &rec, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
