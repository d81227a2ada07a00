// Package storage defines the persistence interface for the index catalogue,
// feature records and contig summaries.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/genomesearch/internal/models"
)

// ErrNotFound is returned when a catalogue entry does not exist.
var ErrNotFound = errors.New("not found")

// Storage persists built genome indexes. Rows are addressed by the index key
// and the record's position in the source object.
type Storage interface {
	// Catalogue operations
	SaveIndex(ctx context.Context, rec *models.IndexRecord, features []models.FeatureData, contigs []models.ContigData) error
	GetIndexRecord(ctx context.Context, key string) (*models.IndexRecord, error)
	ListIndexRecords(ctx context.Context, offset, limit int) ([]*models.IndexRecord, error)
	DeleteIndex(ctx context.Context, key string) error

	// Record operations. Results follow the order of positions.
	GetFeatures(ctx context.Context, key string, positions []int64) ([]models.FeatureData, error)
	AllFeatures(ctx context.Context, key string) ([]models.FeatureData, error)
	GetContigs(ctx context.Context, key string, positions []int64) ([]models.ContigData, error)
	AllContigs(ctx context.Context, key string) ([]models.ContigData, error)
	// GetContigLength reports the length of a contig and whether it exists.
	GetContigLength(ctx context.Context, key, contigID string) (int64, bool, error)

	// Stats
	CountIndexes(ctx context.Context) (int64, error)
	CountFeatures(ctx context.Context) (int64, error)

	Close() error
}
