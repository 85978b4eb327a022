package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/metrics"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/storage"
)

// PhotoUpload holds the parameters for adding a photo to a listing.
type PhotoUpload struct {
	AccountID   uuid.UUID
	ListingID   uuid.UUID
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadedPhoto is a stored photo and its public address.
type UploadedPhoto struct {
	Photo domain.ListingPhoto
	URL   string
}

// MediaService stores listing photos under the photo and storage quotas.
type MediaService interface {
	// UploadPhoto reserves a photo slot and the storage it needs, then
	// stores the file. Quota denials are returned as the Decision with a
	// nil result and a nil error.
	UploadPhoto(ctx context.Context, actor domain.Actor, upload PhotoUpload) (*UploadedPhoto, domain.Decision, error)
}

type mediaService struct {
	accounts AccountService
	quota    QuotaGate
	photos   domain.PhotoStore
	storage  storage.Storage
	maxSize  int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewMediaService creates a new MediaService. maxSize caps a single upload
// in bytes regardless of plan. A nil clock defaults to time.Now.
func NewMediaService(accounts AccountService, quota QuotaGate, photos domain.PhotoStore, store storage.Storage, maxSize int64, logger *slog.Logger, clock func() time.Time) MediaService {
	if clock == nil {
		clock = time.Now
	}
	return &mediaService{
		accounts: accounts,
		quota:    quota,
		photos:   photos,
		storage:  store,
		maxSize:  maxSize,
		logger:   logger,
		now:      clock,
	}
}

func (s *mediaService) UploadPhoto(ctx context.Context, actor domain.Actor, upload PhotoUpload) (*UploadedPhoto, domain.Decision, error) {
	const op = "MediaService.UploadPhoto"

	if actor.ID == uuid.Nil || actor.ID != upload.AccountID {
		return nil, domain.Decision{}, domain.Forbidden(op, "photos can only be uploaded by the account owner")
	}
	if upload.Size <= 0 {
		return nil, domain.Decision{}, domain.Invalid(op, "the uploaded file is empty")
	}
	if s.maxSize > 0 && upload.Size > s.maxSize {
		return nil, domain.Decision{}, domain.Errorf(domain.ETOOLARGE, op, "photos are limited to %d MB", s.maxSize/(1<<20))
	}
	contentType := storage.PhotoContentType(upload.ContentType, upload.Filename)
	if !storage.IsAllowedPhotoType(contentType) {
		return nil, domain.Decision{}, domain.Invalid(op, "only JPEG, PNG, WebP and HEIC photos are accepted")
	}

	account, plan, err := s.accounts.Resolve(ctx, upload.AccountID)
	if err != nil {
		return nil, domain.Decision{}, err
	}

	photoDecision, err := s.quota.Reserve(ctx, account, plan, domain.UploadPhoto(upload.ListingID))
	if err != nil {
		return nil, domain.Decision{}, err
	}
	if !photoDecision.Allowed {
		metrics.PhotosUploadedTotal.WithLabelValues("denied").Inc()
		return nil, photoDecision, nil
	}

	var reservations []domain.Reservation
	reservations = append(reservations, *photoDecision.Reservation)

	storageDecision, err := s.quota.Reserve(ctx, account, plan, domain.ConsumeStorage(upload.Size))
	if err != nil {
		s.release(ctx, reservations)
		return nil, domain.Decision{}, err
	}
	if !storageDecision.Allowed {
		s.release(ctx, reservations)
		metrics.PhotosUploadedTotal.WithLabelValues("denied").Inc()
		return nil, storageDecision, nil
	}
	reservations = append(reservations, *storageDecision.Reservation)

	key := storage.ListingPhotoKey(upload.ListingID, upload.Filename, contentType)
	err = s.storage.Put(ctx, key, upload.Body, storage.PutOptions{
		ContentType: contentType,
		MaxSize:     upload.Size,
		Public:      true,
	})
	if err != nil {
		s.release(ctx, reservations)
		metrics.PhotosUploadedTotal.WithLabelValues("failed").Inc()
		if storage.IsTooLarge(err) {
			return nil, domain.Decision{}, domain.Errorf(domain.ETOOLARGE, op, "the uploaded file is larger than declared")
		}
		s.logger.Error("failed to store photo", "error", err, "op", op, "key", key)
		return nil, domain.Decision{}, domain.StorageUnavailable(err, op, "Photo storage is unavailable")
	}

	photo := domain.ListingPhoto{
		ID:         uuid.New(),
		ListingID:  upload.ListingID,
		AccountID:  account.ID,
		StorageKey: key,
		SizeBytes:  upload.Size,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.photos.AddListingPhoto(ctx, photo); err != nil {
		s.logger.Error("failed to record photo", "error", err, "op", op, "key", key)
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn("failed to delete orphaned photo", "error", delErr, "key", key)
		}
		s.release(ctx, reservations)
		metrics.PhotosUploadedTotal.WithLabelValues("failed").Inc()
		return nil, domain.Decision{}, domain.StorageUnavailable(err, op, "Photo could not be saved")
	}

	url, err := s.storage.URL(ctx, key, 0)
	if err != nil {
		// The photo is stored; the URL can be rebuilt from the key.
		s.logger.Warn("failed to build photo url", "error", err, "key", key)
	}

	metrics.PhotosUploadedTotal.WithLabelValues("stored").Inc()
	s.logger.Info("photo uploaded",
		"photo_id", photo.ID,
		"listing_id", photo.ListingID,
		"account_id", account.ID,
		"size_bytes", photo.SizeBytes,
	)
	return &UploadedPhoto{Photo: photo, URL: url}, storageDecision, nil
}

// release returns reservations after a failed upload. Failures are logged
// by the usage counter and leave the counters high.
func (s *mediaService) release(ctx context.Context, reservations []domain.Reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range reservations {
		_ = s.quota.Release(ctx, r)
	}
}
