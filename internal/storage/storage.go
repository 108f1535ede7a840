// Package storage defines the persistence interface for indexed audio items.
package storage

import (
	"context"

	"github.com/hyperjump/soundsift/internal/models"
)

// Store info keys.
const (
	InfoModelVersion = "model_version"
	InfoDimensions   = "dimensions"
)

// MetadataStore maps item paths to vector slots. Every call is an independent
// durable write or read; there is no cross-call transaction.
type MetadataStore interface {
	// Item operations
	UpsertByPath(ctx context.Context, path string, lastModified, duration float64) (int64, error)
	InsertWithSlot(ctx context.Context, path string, slot int64, lastModified, duration float64) (bool, error)
	LookupByPath(ctx context.Context, path string) (*models.Item, error)
	LookupBySlot(ctx context.Context, slot int64) (*models.Item, error)
	ListItems(ctx context.Context, offset, limit int) ([]*models.Item, error)

	// Consistency
	MaxSlot(ctx context.Context) (int64, error)
	DeleteItemsFromSlot(ctx context.Context, slot int64) ([]string, error)

	// Store info
	StoreInfo(ctx context.Context, key string) (string, bool, error)
	SetStoreInfo(ctx context.Context, key, value string) error

	// Stats
	CountItems(ctx context.Context) (int64, error)
	CountSlotted(ctx context.Context) (int64, error)
	CountItemsFromSlot(ctx context.Context, slot int64) (int64, error)

	Close() error
}
