package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/storage"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/store/memory"
)

// blobStore is an in-memory storage.Storage.
type blobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newBlobStore() *blobStore {
	return &blobStore{objects: make(map[string][]byte)}
}

func (b *blobStore) Put(ctx context.Context, key string, data io.Reader, opts storage.PutOptions) error {
	if b.putErr != nil {
		return b.putErr
	}
	body, err := io.ReadAll(io.LimitReader(data, opts.MaxSize+1))
	if err != nil {
		return err
	}
	if opts.MaxSize > 0 && int64(len(body)) > opts.MaxSize {
		return &storage.StorageError{Op: "put", Key: key, Err: storage.ErrTooLarge}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = body
	return nil
}

func (b *blobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *blobStore) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://cdn.example.test/" + key, nil
}

func (b *blobStore) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// failingPhotos counts photos normally but refuses to record new ones.
type failingPhotos struct {
	*memory.Store
}

func (failingPhotos) AddListingPhoto(context.Context, domain.ListingPhoto) error {
	return errBackend
}

const maxUpload = 10 << 20

func newMediaEngine(t *testing.T, photos domain.PhotoStore, blobs storage.Storage) (*engine, MediaService) {
	t.Helper()
	e := newEngine(t)
	if photos == nil {
		photos = e.store
	}
	media := NewMediaService(e.accounts, e.quota, photos, blobs, maxUpload, discardLogger(), e.clock.Now)
	return e, media
}

func photoUpload(account domain.Account, listing uuid.UUID, size int) PhotoUpload {
	return PhotoUpload{
		AccountID:   account.ID,
		ListingID:   listing,
		Filename:    "terrace.jpg",
		ContentType: "image/jpeg",
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte{0xff}, size)),
	}
}

func TestMediaService_UploadPhoto(t *testing.T) {
	blobs := newBlobStore()
	e, media := newMediaEngine(t, nil, blobs)
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)
	listing := uuid.New()

	up, d, err := media.UploadPhoto(ctx, domain.Actor{ID: account.ID}, photoUpload(account, listing, 500_000))
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.NotNil(t, up)

	assert.True(t, strings.HasPrefix(up.Photo.StorageKey, "listings/"+listing.String()+"/photos/"))
	assert.True(t, strings.HasSuffix(up.Photo.StorageKey, ".jpg"))
	assert.Equal(t, "https://cdn.example.test/"+up.Photo.StorageKey, up.URL)
	assert.Equal(t, 1, blobs.len())

	count, err := e.store.CountListingPhotos(ctx, listing)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec := e.usageNow(t, account)
	assert.Equal(t, int64(1), rec.PhotosUploaded)
	assert.InDelta(t, 0.5, rec.StorageUsedMB, 1e-9)
}

func TestMediaService_PhotoLimitDenied(t *testing.T) {
	blobs := newBlobStore()
	e, media := newMediaEngine(t, nil, blobs)
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)
	listing := uuid.New()

	for i := 0; i < 5; i++ {
		_, d, err := media.UploadPhoto(ctx, domain.Actor{ID: account.ID}, photoUpload(account, listing, 1000))
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	up, d, err := media.UploadPhoto(ctx, domain.Actor{ID: account.ID}, photoUpload(account, listing, 1000))
	require.NoError(t, err)
	assert.Nil(t, up)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonPhotosExceeded, d.Reason)
	assert.Equal(t, 5, blobs.len())
	assert.Equal(t, int64(5), e.usageNow(t, account).PhotosUploaded)
}

func TestMediaService_ConcurrentUploadsRespectPhotoLimit(t *testing.T) {
	blobs := newBlobStore()
	e, media := newMediaEngine(t, nil, blobs)
	account := e.register(t, domain.PlanBasic)
	listing := uuid.New()

	const attempts = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up, d, err := media.UploadPhoto(context.Background(), domain.Actor{ID: account.ID}, photoUpload(account, listing, 1000))
			if err != nil {
				t.Error(err)
				return
			}
			if d.Allowed && up != nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
	assert.Equal(t, 5, blobs.len())
	taken, err := e.store.CountListingPhotos(context.Background(), listing)
	require.NoError(t, err)
	assert.Equal(t, 5, taken)
}

func TestMediaService_StorageDeniedReleasesPhotoSlot(t *testing.T) {
	blobs := newBlobStore()
	e, media := newMediaEngine(t, nil, blobs)
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)

	_, err := e.usage.Increment(ctx, account, e.clock.Now(), domain.UsageStorageUsedMB, 99.9)
	require.NoError(t, err)

	listing := uuid.New()
	up, d, err := media.UploadPhoto(ctx, domain.Actor{ID: account.ID}, photoUpload(account, listing, 200_000))
	require.NoError(t, err)
	assert.Nil(t, up)
	assert.Equal(t, domain.ReasonStorageExceeded, d.Reason)

	taken, err := e.store.CountListingPhotos(ctx, listing)
	require.NoError(t, err)
	assert.Zero(t, taken)

	rec := e.usageNow(t, account)
	assert.Zero(t, rec.PhotosUploaded)
	assert.InDelta(t, 99.9, rec.StorageUsedMB, 1e-9)
	assert.Zero(t, blobs.len())
}

func TestMediaService_StorageFailureReleasesReservations(t *testing.T) {
	blobs := newBlobStore()
	blobs.putErr = &storage.StorageError{Op: "put", Err: errBackend}
	e, media := newMediaEngine(t, nil, blobs)
	account := e.register(t, domain.PlanBasic)

	_, _, err := media.UploadPhoto(context.Background(), domain.Actor{ID: account.ID}, photoUpload(account, uuid.New(), 1000))
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	rec := e.usageNow(t, account)
	assert.Zero(t, rec.PhotosUploaded)
	assert.Zero(t, rec.StorageUsedMB)
}

func TestMediaService_RecordFailureDeletesBlob(t *testing.T) {
	blobs := newBlobStore()
	e, media := newMediaEngine(t, failingPhotos{memory.New()}, blobs)
	account := e.register(t, domain.PlanBasic)

	_, _, err := media.UploadPhoto(context.Background(), domain.Actor{ID: account.ID}, photoUpload(account, uuid.New(), 1000))
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Zero(t, blobs.len())

	rec := e.usageNow(t, account)
	assert.Zero(t, rec.PhotosUploaded)
	assert.Zero(t, rec.StorageUsedMB)
}

func TestMediaService_BodyLargerThanDeclared(t *testing.T) {
	blobs := newBlobStore()
	e, media := newMediaEngine(t, nil, blobs)
	account := e.register(t, domain.PlanBasic)

	upload := photoUpload(account, uuid.New(), 2000)
	upload.Size = 1000

	_, _, err := media.UploadPhoto(context.Background(), domain.Actor{ID: account.ID}, upload)
	assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
	assert.Zero(t, e.usageNow(t, account).StorageUsedMB)
}

func TestMediaService_Refusals(t *testing.T) {
	e, media := newMediaEngine(t, nil, newBlobStore())
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)
	owner := domain.Actor{ID: account.ID}

	tests := []struct {
		name   string
		actor  domain.Actor
		modify func(*PhotoUpload)
		code   string
	}{
		{"not the owner", domain.Actor{ID: uuid.New()}, func(*PhotoUpload) {}, domain.EFORBIDDEN},
		{"empty file", owner, func(u *PhotoUpload) { u.Size = 0 }, domain.EINVALID},
		{"over the upload cap", owner, func(u *PhotoUpload) { u.Size = maxUpload + 1 }, domain.ETOOLARGE},
		{"not an image", owner, func(u *PhotoUpload) { u.ContentType = "application/pdf"; u.Filename = "menu.pdf" }, domain.EINVALID},
		{"missing listing", owner, func(u *PhotoUpload) { u.ListingID = uuid.Nil }, domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upload := photoUpload(account, uuid.New(), 1000)
			tt.modify(&upload)

			_, _, err := media.UploadPhoto(ctx, tt.actor, upload)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
		})
	}

	rec := e.usageNow(t, account)
	assert.Zero(t, rec.PhotosUploaded)
	assert.Zero(t, rec.StorageUsedMB)
}
