package repositories

import (
	"context"

	"studentmarket/app/models"
)

// KV is a durable key-value slot store.
type KV interface {
	// Get returns ErrNotFound when key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// ListingStore persists the whole listing collection as one snapshot.
type ListingStore interface {
	// Load never fails: missing or unreadable data yields an empty collection.
	Load(ctx context.Context) []*models.Listing
	Save(ctx context.Context, listings []*models.Listing) error
}
