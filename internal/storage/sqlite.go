package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotaeru/internal/models"
)

// ErrNotFound is returned when a document ID has no record.
var ErrNotFound = errors.New("document not found")

// SQLiteRegistry implements Registry on a local SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates the database at dbPath, creating parent
// directories as needed.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		type TEXT NOT NULL,
		chunks INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		mtime_nano INTEGER NOT NULL,
		ingested_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertDocument inserts or replaces the record for doc.ID.
func (s *SQLiteRegistry) UpsertDocument(ctx context.Context, doc *models.Document) error {
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, path, type, chunks, size_bytes, mtime_nano, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			type = excluded.type,
			chunks = excluded.chunks,
			size_bytes = excluded.size_bytes,
			mtime_nano = excluded.mtime_nano,
			ingested_at = excluded.ingested_at`,
		doc.ID, doc.Name, doc.Path, doc.Type, doc.Chunks, doc.SizeBytes, doc.MTimeNano, doc.IngestedAt,
	)
	return err
}

// GetDocument returns the record for id, or ErrNotFound.
func (s *SQLiteRegistry) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, type, chunks, size_bytes, mtime_nano, ingested_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Name, &doc.Path, &doc.Type, &doc.Chunks, &doc.SizeBytes, &doc.MTimeNano, &doc.IngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns records ordered by path.
func (s *SQLiteRegistry) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, type, chunks, size_bytes, mtime_nano, ingested_at
		 FROM documents ORDER BY path LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Path, &doc.Type, &doc.Chunks, &doc.SizeBytes, &doc.MTimeNano, &doc.IngestedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the record for id. Deleting an absent id is not an
// error.
func (s *SQLiteRegistry) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// CountDocuments returns the number of tracked documents.
func (s *SQLiteRegistry) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// CountChunks returns the total chunk count across all documents.
func (s *SQLiteRegistry) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunks), 0) FROM documents`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}
