package drafts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"studentmarket/app/apperror"
	"studentmarket/app/identity"
	"studentmarket/app/imaging"
	"studentmarket/app/models"
	"studentmarket/app/repositories"
	"studentmarket/app/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R'}

func png() io.Reader { return bytes.NewReader(pngBytes) }

// gatedEncoder blocks every Encode until release is closed.
type gatedEncoder struct {
	started chan struct{}
	release chan struct{}
}

func newGatedEncoder() *gatedEncoder {
	return &gatedEncoder{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedEncoder) Encode(ctx context.Context, r io.Reader) (string, error) {
	g.started <- struct{}{}
	<-g.release
	return imaging.NewEncoder(0).Encode(ctx, r)
}

func newComposer(t *testing.T, enc Encoder, opts ...Option) (*Composer, *services.ListingService) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	repo := repositories.NewListingRepository(repositories.NewMemoryKV(), "", logger)
	svc := services.NewListingService(context.Background(), repo, identity.Default(), logger)
	return NewComposer(enc, svc, logger, opts...), svc
}

func TestOpenCreatesDistinctDrafts(t *testing.T) {
	c, _ := newComposer(t, imaging.NewEncoder(0))

	a := c.Open()
	b := c.Open()

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	images, err := c.Images(a.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestUploadAttachesImages(t *testing.T) {
	c, _ := newComposer(t, imaging.NewEncoder(0))
	ctx := context.Background()
	d := c.Open()

	images, err := c.Upload(ctx, d.ID, png())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.True(t, strings.HasPrefix(images[0], "data:image/png;base64,"))

	_, err = c.Upload(ctx, d.ID, png())
	require.NoError(t, err)

	images, err = c.Images(d.ID)
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func TestUploadRejectsFourthImage(t *testing.T) {
	c, _ := newComposer(t, imaging.NewEncoder(0))
	ctx := context.Background()
	d := c.Open()

	for i := 0; i < models.MaxImages; i++ {
		_, err := c.Upload(ctx, d.ID, png())
		require.NoError(t, err)
	}

	_, err := c.Upload(ctx, d.ID, png())
	require.ErrorIs(t, err, ErrImageLimit)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	images, err := c.Images(d.ID)
	require.NoError(t, err)
	assert.Len(t, images, models.MaxImages)
}

func TestUploadCapRecheckedAfterEncode(t *testing.T) {
	enc := newGatedEncoder()
	c, _ := newComposer(t, enc)
	ctx := context.Background()
	d := c.Open()

	// Four uploads start while the draft is empty; only three may land.
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := c.Upload(ctx, d.ID, png())
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		<-enc.started
	}
	close(enc.release)

	var limited int
	for i := 0; i < 4; i++ {
		if err := <-errs; err != nil {
			require.ErrorIs(t, err, ErrImageLimit)
			limited++
		}
	}
	assert.Equal(t, 1, limited)

	images, err := c.Images(d.ID)
	require.NoError(t, err)
	assert.Len(t, images, models.MaxImages)
}

func TestStaleUploadDiscardedAfterDismiss(t *testing.T) {
	enc := newGatedEncoder()
	c, _ := newComposer(t, enc)
	ctx := context.Background()
	d := c.Open()

	errs := make(chan error, 1)
	go func() {
		_, err := c.Upload(ctx, d.ID, png())
		errs <- err
	}()
	<-enc.started

	c.Dismiss(d.ID)
	reopened := c.Open()
	close(enc.release)

	require.ErrorIs(t, <-errs, ErrDraftClosed)

	images, err := c.Images(reopened.ID)
	require.NoError(t, err)
	assert.Empty(t, images)

	_, err = c.Images(d.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUploadRejectsNonImages(t *testing.T) {
	c, _ := newComposer(t, imaging.NewEncoder(0))
	d := c.Open()

	_, err := c.Upload(context.Background(), d.ID, strings.NewReader("just some notes"))
	require.ErrorIs(t, err, apperror.ErrValidation)

	images, err := c.Images(d.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestUploadErrors(t *testing.T) {
	t.Run("unknown draft", func(t *testing.T) {
		c, _ := newComposer(t, imaging.NewEncoder(0))
		_, err := c.Upload(context.Background(), "nope", png())
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("too large", func(t *testing.T) {
		c, _ := newComposer(t, imaging.NewEncoder(4))
		d := c.Open()
		_, err := c.Upload(context.Background(), d.ID, png())
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("read failure", func(t *testing.T) {
		c, _ := newComposer(t, imaging.NewEncoder(0))
		d := c.Open()
		boom := errors.New("disk error")
		_, err := c.Upload(context.Background(), d.ID, io.MultiReader(png(), errReader{boom}))
		assert.ErrorIs(t, err, boom)

		images, err := c.Images(d.ID)
		require.NoError(t, err)
		assert.Empty(t, images)
	})
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestDismissIsIdempotent(t *testing.T) {
	c, _ := newComposer(t, imaging.NewEncoder(0))
	d := c.Open()

	c.Dismiss(d.ID)
	c.Dismiss(d.ID)
	c.Dismiss("never-opened")

	_, err := c.Images(d.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPublish(t *testing.T) {
	c, svc := newComposer(t, imaging.NewEncoder(0))
	ctx := context.Background()
	d := c.Open()

	_, err := c.Upload(ctx, d.ID, png())
	require.NoError(t, err)

	l, err := c.Publish(ctx, d.ID, &models.ListingInput{
		Title:       "Arduino kit",
		Description: "Uno board plus sensors",
		Type:        models.Selling,
		Price:       "750",
	})
	require.NoError(t, err)
	require.Len(t, l.Images, 1)
	assert.Equal(t, imaging.DataURI(pngBytes), l.Images[0])

	stored, err := svc.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Images, stored.Images)

	_, err = c.Images(d.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPublishInvalidKeepsDraftOpen(t *testing.T) {
	c, svc := newComposer(t, imaging.NewEncoder(0))
	ctx := context.Background()
	d := c.Open()

	_, err := c.Upload(ctx, d.ID, png())
	require.NoError(t, err)

	_, err = c.Publish(ctx, d.ID, &models.ListingInput{Title: "Bag", Description: "Black", Type: models.Selling})
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Empty(t, svc.Snapshot())

	images, err := c.Images(d.ID)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestPublishUnknownDraft(t *testing.T) {
	c, _ := newComposer(t, imaging.NewEncoder(0))

	_, err := c.Publish(context.Background(), "gone", &models.ListingInput{Title: "x", Description: "y", Type: models.Looking})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// manualClock only moves when advanced.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func TestIdleDraftsExpire(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c, _ := newComposer(t, imaging.NewEncoder(0), WithClock(clock.Now), WithIdleTimeout(10*time.Minute))
	ctx := context.Background()

	idle := c.Open()
	busy := c.Open()

	clock.Advance(6 * time.Minute)
	_, err := c.Upload(ctx, busy.ID, png())
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)

	_, err = c.Images(idle.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = c.Upload(ctx, idle.ID, png())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	images, err := c.Images(busy.ID)
	require.NoError(t, err)
	assert.Len(t, images, 1)
	assert.Equal(t, 1, c.Len())

	clock.Advance(11 * time.Minute)
	assert.Equal(t, 0, c.Len())
}

func TestOpenEvictsLeastRecentlyUsedDraft(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c, _ := newComposer(t, imaging.NewEncoder(0), WithClock(clock.Now), WithMaxOpen(2))
	ctx := context.Background()

	first := c.Open()
	clock.Advance(time.Second)
	second := c.Open()
	clock.Advance(time.Second)

	// Uploading refreshes the first draft, so the second is now the oldest.
	_, err := c.Upload(ctx, first.ID, png())
	require.NoError(t, err)
	clock.Advance(time.Second)

	for i := 0; i < 50; i++ {
		c.Open()
		assert.LessOrEqual(t, c.Len(), 2)
	}

	_, err = c.Images(second.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = c.Images(first.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, 2, c.Len())
}

func TestOpenAtCapacityKeepsRecentDraft(t *testing.T) {
	clock := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c, _ := newComposer(t, imaging.NewEncoder(0), WithClock(clock.Now), WithMaxOpen(2))

	old := c.Open()
	clock.Advance(time.Second)
	recent := c.Open()
	clock.Advance(time.Second)
	c.Open()

	_, err := c.Images(old.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = c.Images(recent.ID)
	assert.NoError(t, err)
}

func TestUploadToEvictedDraftIsDiscarded(t *testing.T) {
	enc := newGatedEncoder()
	c, _ := newComposer(t, enc, WithMaxOpen(1))
	ctx := context.Background()
	d := c.Open()

	errs := make(chan error, 1)
	go func() {
		_, err := c.Upload(ctx, d.ID, png())
		errs <- err
	}()
	<-enc.started

	other := c.Open()
	close(enc.release)

	require.ErrorIs(t, <-errs, ErrDraftClosed)
	images, err := c.Images(other.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}
