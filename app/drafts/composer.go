// Package drafts holds the state of listing forms that are still being filled
// in, chiefly the images attached before publishing.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"studentmarket/app/apperror"
	"studentmarket/app/imaging"
	"studentmarket/app/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrImageLimit  = apperror.Conflict(fmt.Sprintf("a listing can hold at most %d images", models.MaxImages))
	ErrDraftClosed = apperror.Conflict("draft was closed before the upload finished")
)

// Encoder renders an uploaded file as a data URI.
type Encoder interface {
	Encode(ctx context.Context, r io.Reader) (string, error)
}

// Publisher creates the listing a draft turns into.
type Publisher interface {
	Create(ctx context.Context, input *models.ListingInput) (*models.Listing, error)
}

// Limits on open drafts.
const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultMaxOpen     = 1000
)

// Draft is one open listing form.
type Draft struct {
	ID       string    `json:"id"`
	OpenedAt time.Time `json:"openedAt"`

	images  []string
	touched time.Time
}

// Composer tracks open drafts. Encoding runs without holding the lock, so a
// slow upload never blocks other drafts or the listing store.
//
// Drafts idle for longer than the idle timeout are closed, and opening a
// draft while maxOpen are open closes the least recently used one.
type Composer struct {
	mu     sync.Mutex
	drafts map[string]*Draft

	encoder     Encoder
	publisher   Publisher
	logger      *zap.Logger
	now         func() time.Time
	idleTimeout time.Duration
	maxOpen     int
}

// Option configures a Composer.
type Option func(*Composer)

// WithClock sets the time source used for draft timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// WithIdleTimeout closes drafts that have not been touched for d.
// Non-positive values keep the default.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// WithMaxOpen bounds the number of open drafts. Non-positive values keep
// the default.
func WithMaxOpen(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxOpen = n
		}
	}
}

func NewComposer(encoder Encoder, publisher Publisher, logger *zap.Logger, opts ...Option) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Composer{
		drafts:      make(map[string]*Draft),
		encoder:     encoder,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
		idleTimeout: DefaultIdleTimeout,
		maxOpen:     DefaultMaxOpen,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts a new draft with no images.
func (c *Composer) Open() *Draft {
	c.mu.Lock()
	now := c.now().UTC()
	c.expireLocked(now)
	if len(c.drafts) >= c.maxOpen {
		c.evictOldestLocked()
	}
	d := &Draft{ID: uuid.NewString(), OpenedAt: now, touched: now}
	c.drafts[d.ID] = d
	c.mu.Unlock()

	c.logger.Debug("draft opened", zap.String("draft_id", d.ID))
	return &Draft{ID: d.ID, OpenedAt: d.OpenedAt}
}

// Len reports how many drafts are open.
func (c *Composer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return len(c.drafts)
}

// lookupLocked returns the open draft with id, closing it first if it has
// been idle too long.
func (c *Composer) lookupLocked(id string) (*Draft, bool) {
	d, ok := c.drafts[id]
	if !ok {
		return nil, false
	}
	if c.now().Sub(d.touched) > c.idleTimeout {
		delete(c.drafts, id)
		c.logger.Debug("draft expired", zap.String("draft_id", id))
		return nil, false
	}
	return d, true
}

func (c *Composer) expireLocked(now time.Time) {
	for id, d := range c.drafts {
		if now.Sub(d.touched) > c.idleTimeout {
			delete(c.drafts, id)
			c.logger.Debug("draft expired", zap.String("draft_id", id))
		}
	}
}

func (c *Composer) evictOldestLocked() {
	var oldest *Draft
	for _, d := range c.drafts {
		if oldest == nil || d.touched.Before(oldest.touched) {
			oldest = d
		}
	}
	if oldest != nil {
		delete(c.drafts, oldest.ID)
		c.logger.Info("too many open drafts, closing the least recently used",
			zap.String("draft_id", oldest.ID), zap.Int("max_open", c.maxOpen))
	}
}

// Upload encodes r and attaches it to the draft, returning the draft's
// images afterwards. The result is discarded if the draft was dismissed or
// filled up while encoding.
func (c *Composer) Upload(ctx context.Context, draftID string, r io.Reader) ([]string, error) {
	c.mu.Lock()
	d, ok := c.lookupLocked(draftID)
	full := ok && len(d.images) >= models.MaxImages
	c.mu.Unlock()

	if !ok {
		return nil, apperror.NotFound("draft", draftID)
	}
	if full {
		return nil, ErrImageLimit
	}

	uri, err := c.encoder.Encode(ctx, r)
	if err != nil {
		if errors.Is(err, imaging.ErrTooLarge) {
			return nil, apperror.ValidationFailed("image", err.Error())
		}
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	if mediaType := imaging.MediaType(uri); !strings.HasPrefix(mediaType, "image/") {
		return nil, apperror.ValidationFailed("image", fmt.Sprintf("only image files can be attached, got %s", mediaType))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.lookupLocked(draftID); !ok || cur != d {
		c.logger.Info("discarding upload for closed draft", zap.String("draft_id", draftID))
		return nil, ErrDraftClosed
	}
	if len(d.images) >= models.MaxImages {
		return nil, ErrImageLimit
	}
	d.images = append(d.images, uri)
	d.touched = c.now()

	c.logger.Debug("image attached", zap.String("draft_id", draftID), zap.Int("images", len(d.images)))
	return slices.Clone(d.images), nil
}

// Images returns the images committed to the draft so far.
func (c *Composer) Images(draftID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.lookupLocked(draftID)
	if !ok {
		return nil, apperror.NotFound("draft", draftID)
	}
	return slices.Clone(d.images), nil
}

// Dismiss closes the draft. Dismissing an unknown or closed draft does nothing.
func (c *Composer) Dismiss(draftID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.drafts[draftID]; ok {
		delete(c.drafts, draftID)
		c.logger.Debug("draft dismissed", zap.String("draft_id", draftID))
	}
}

// Publish creates a listing from input and the draft's images, then closes
// the draft. A draft rejected by validation stays open so the form can be
// corrected.
func (c *Composer) Publish(ctx context.Context, draftID string, input *models.ListingInput) (*models.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.lookupLocked(draftID)
	if !ok {
		return nil, apperror.NotFound("draft", draftID)
	}

	input.Images = slices.Clone(d.images)
	listing, err := c.publisher.Create(ctx, input)
	if listing == nil {
		return nil, err
	}

	delete(c.drafts, draftID)
	c.logger.Info("draft published", zap.String("draft_id", draftID), zap.String("listing_id", listing.ID))
	return listing, err
}
