package repositories

import (
	"context"
	"errors"

	"studentmarket/app/models"

	"go.uber.org/zap"
)

// ListingRepository persists the listing collection as a single JSON array
// under one key. Every Save is a full overwrite.
type ListingRepository struct {
	kv     KV
	key    string
	logger *zap.Logger
}

// NewListingRepository binds the repository to key in kv. An empty key uses DefaultKey.
func NewListingRepository(kv KV, key string, logger *zap.Logger) *ListingRepository {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingRepository{kv: kv, key: key, logger: logger}
}

// Key returns the slot this repository reads and writes.
func (r *ListingRepository) Key() string {
	return r.key
}

// Load reads the snapshot. Absent, unreadable or malformed data yields an
// empty collection; the store is a local cache with nothing to recover from.
func (r *ListingRepository) Load(ctx context.Context) []*models.Listing {
	data, err := r.kv.Get(ctx, r.key)
	if errors.Is(err, ErrNotFound) {
		return []*models.Listing{}
	}
	if err != nil {
		r.logger.Warn("reading listing snapshot failed, starting empty",
			zap.String("key", r.key), zap.Error(err))
		return []*models.Listing{}
	}

	var listings []*models.Listing
	if err := unmarshalEntity(data, &listings); err != nil {
		r.logger.Warn("listing snapshot is corrupt, starting empty",
			zap.String("key", r.key), zap.Int("bytes", len(data)), zap.Error(err))
		return []*models.Listing{}
	}

	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil {
			r.logger.Warn("listing snapshot contains null entries, starting empty", zap.String("key", r.key))
			return []*models.Listing{}
		}
		out = append(out, l)
	}
	return out
}

// Save overwrites the snapshot with listings. Errors are returned as is.
func (r *ListingRepository) Save(ctx context.Context, listings []*models.Listing) error {
	if listings == nil {
		listings = []*models.Listing{}
	}
	data, err := marshalEntity(listings)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, r.key, data)
}
