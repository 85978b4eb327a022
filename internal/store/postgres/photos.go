package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

// CountListingPhotos returns the number of photo slots taken on the listing.
func (s *Store) CountListingPhotos(ctx context.Context, listingID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT taken FROM listing_photo_slots WHERE listing_id = $1`, listingID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// AdjustListingPhotoSlots adds delta to the listing's taken slots in one
// statement, clamping at zero, and returns the new count.
func (s *Store) AdjustListingPhotoSlots(ctx context.Context, listingID uuid.UUID, delta int) (int, error) {
	const q = `
INSERT INTO listing_photo_slots (listing_id, taken, updated_at)
VALUES ($1, GREATEST(0, $2::INTEGER), NOW())
ON CONFLICT (listing_id)
DO UPDATE SET taken = GREATEST(0, listing_photo_slots.taken + $2::INTEGER),
              updated_at = NOW()
RETURNING taken`

	var n int
	err := s.db.QueryRow(ctx, q, listingID, delta).Scan(&n)
	return n, err
}

// AddListingPhoto attaches a photo to its listing. The slot was taken when
// the upload was reserved.
func (s *Store) AddListingPhoto(ctx context.Context, photo domain.ListingPhoto) error {
	const q = `
INSERT INTO listing_photos (id, listing_id, account_id, storage_key, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, q, photo.ID, photo.ListingID, photo.AccountID, photo.StorageKey, photo.SizeBytes, photo.CreatedAt)
	return err
}
