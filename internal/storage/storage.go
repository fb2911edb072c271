// Package storage tracks ingested documents so rebuilds can skip files that
// have not changed and the API can report what is indexed.
package storage

import (
	"context"

	"github.com/hyperjump/kotaeru/internal/models"
)

// Registry persists document ingest records.
type Registry interface {
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	Close() error
}
