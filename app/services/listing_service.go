package services

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"studentmarket/app/apperror"
	"studentmarket/app/identity"
	"studentmarket/app/ids"
	"studentmarket/app/models"
	"studentmarket/app/query"
	"studentmarket/app/repositories"

	"go.uber.org/zap"
)

// Stats summarizes the collection for the dashboard panel.
type Stats struct {
	Live     int `json:"liveListings"`
	Selling  int `json:"selling"`
	Looking  int `json:"looking"`
	Comments int `json:"comments"`
}

// Option customizes a ListingService.
type Option func(*ListingService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ListingService) { s.now = now }
}

// WithIDGenerator replaces ids.New.
func WithIDGenerator(newID func() string) Option {
	return func(s *ListingService) { s.newID = newID }
}

// ListingService owns the in-memory listing collection and keeps the
// persisted copy in step with it. Newest listings come first.
type ListingService struct {
	mu       sync.RWMutex
	listings []*models.Listing

	repo     repositories.ListingStore
	identity identity.Provider
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewListingService loads the persisted collection once.
func NewListingService(ctx context.Context, repo repositories.ListingStore, id identity.Provider, logger *zap.Logger, opts ...Option) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if id == nil {
		id = identity.Default()
	}

	s := &ListingService{
		repo:     repo,
		identity: id,
		logger:   logger,
		now:      time.Now,
		newID:    ids.New,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.listings = repo.Load(ctx)
	s.logger.Info("listings loaded", zap.Int("count", len(s.listings)))
	return s
}

// Create validates input, stamps it with a fresh id and the current poster,
// and prepends it to the collection.
func (s *ListingService) Create(ctx context.Context, input *models.ListingInput) (*models.Listing, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	listing := input.Build(s.newID(), s.now().UTC(), s.identity.Poster())
	if err := listing.Validate(); err != nil {
		return nil, err
	}

	next := make([]*models.Listing, 0, len(s.listings)+1)
	next = append(next, listing)
	next = append(next, s.listings...)
	s.listings = next

	s.logger.Info("listing created",
		zap.String("id", listing.ID),
		zap.String("type", string(listing.Type)),
		zap.Int("images", len(listing.Images)))

	return listing, s.persist(ctx, "create")
}

// AddComment appends a comment by the current commenter. Blank text and
// unknown listing ids are ignored without touching storage.
func (s *ListingService) AddComment(ctx context.Context, listingID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(listingID)
	if idx < 0 {
		s.logger.Debug("comment on unknown listing ignored", zap.String("listing_id", listingID))
		return nil
	}

	comment := models.NewComment(s.newID(), text, s.identity.Commenter(), s.now().UTC())
	updated, err := s.listings[idx].WithComment(comment)
	if err != nil {
		return apperror.ValidationFailed("text", err.Error())
	}

	next := slices.Clone(s.listings)
	next[idx] = updated
	s.listings = next

	s.logger.Info("comment added", zap.String("listing_id", listingID), zap.String("comment_id", comment.ID))
	return s.persist(ctx, "comment")
}

// Delete removes a listing. An unknown id is a no-op.
func (s *ListingService) Delete(ctx context.Context, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(listingID)
	if idx < 0 {
		return nil
	}

	s.listings = slices.Delete(slices.Clone(s.listings), idx, idx+1)

	s.logger.Info("listing deleted", zap.String("id", listingID))
	return s.persist(ctx, "delete")
}

// Get returns the listing with the given id.
func (s *ListingService) Get(id string) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, apperror.NotFound("listing", id)
	}
	return s.listings[idx], nil
}

// Snapshot returns the collection in storage order. Callers may keep the
// result; later mutations never change it.
func (s *ListingService) Snapshot() []*models.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.listings)
}

// Query runs the filter pipeline over the current snapshot.
func (s *ListingService) Query(f query.Filter) []*models.Listing {
	return query.Apply(s.Snapshot(), f)
}

func (s *ListingService) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Live: len(s.listings)}
	for _, l := range s.listings {
		switch l.Type {
		case models.Selling:
			st.Selling++
		case models.Looking:
			st.Looking++
		}
		st.Comments += len(l.Comments)
	}
	return st
}

func (s *ListingService) indexOf(id string) int {
	return slices.IndexFunc(s.listings, func(l *models.Listing) bool { return l.ID == id })
}

// persist must be called with mu held. The in-memory change is kept even
// when the write fails.
func (s *ListingService) persist(ctx context.Context, op string) error {
	if err := s.repo.Save(ctx, s.listings); err != nil {
		s.logger.Error("failed to save listings", zap.String("op", op), zap.Error(err))
		return apperror.Persistence(err)
	}
	return nil
}
