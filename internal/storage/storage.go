// Package storage defines the persistence interface for the aggregated
// state and its implementations.
package storage

import (
	"context"

	"headlines/internal/model"
)

// Storage persists the record collection and the per-source metadata.
// Nothing stored means an empty state, not an error.
type Storage interface {
	LoadRecords(ctx context.Context) ([]model.Record, error)
	LoadMetadata(ctx context.Context) (map[model.SourceType]model.SourceMetadata, error)

	// SaveState replaces the stored records and metadata in one transaction.
	SaveState(ctx context.Context, state model.State) error

	Close() error
}
