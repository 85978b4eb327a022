package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoRecord is returned by store implementations when a row does not exist.
var ErrNoRecord = errors.New("record not found")

// ErrAlreadyExists is returned by insert-only writes when the key is taken.
var ErrAlreadyExists = errors.New("record already exists")

// ErrStateConflict is returned by UpdateModerationState when the stored state
// no longer matches the expected one.
var ErrStateConflict = errors.New("moderation state changed concurrently")

// CounterStore persists per-period usage counters.
//
// AtomicIncrement must be a single atomic read-modify-write in the backing
// store: two concurrent calls never observe the same pre-increment value.
// Negative deltas are compensations; implementations clamp counters at zero.
type CounterStore interface {
	ReadCounter(ctx context.Context, accountID uuid.UUID, key PeriodKey) (*UsageRecord, error)
	AtomicIncrement(ctx context.Context, accountID uuid.UUID, key PeriodKey, field UsageField, delta float64) (UsageRecord, error)
	ListCounters(ctx context.Context, accountID uuid.UUID, keys []PeriodKey) ([]UsageRecord, error)
}

// PhotoStore tracks photos attached to listings.
//
// A listing's photo slots are taken when an upload is reserved, before the
// photo itself is recorded. AdjustListingPhotoSlots must be a single atomic
// read-modify-write that clamps at zero and returns the new slot count.
type PhotoStore interface {
	// CountListingPhotos returns the number of slots taken on the listing.
	CountListingPhotos(ctx context.Context, listingID uuid.UUID) (int, error)
	AdjustListingPhotoSlots(ctx context.Context, listingID uuid.UUID, delta int) (int, error)
	AddListingPhoto(ctx context.Context, photo ListingPhoto) error
}

// AccountStore resolves merchant accounts and their plan.
type AccountStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)

	// CreateAccount inserts a new account. Returns ErrAlreadyExists if the
	// id is taken; existing accounts are never overwritten.
	CreateAccount(ctx context.Context, account Account) error

	UpdateAccountPlan(ctx context.Context, id uuid.UUID, plan PlanID) error
}

// ContentStore persists content items.
type ContentStore interface {
	CreateContent(ctx context.Context, item ContentItem) error
	GetContent(ctx context.Context, id uuid.UUID) (*ContentItem, error)

	// UpdateModerationState writes item's state only if the stored state is
	// still from. Returns ErrStateConflict otherwise.
	UpdateModerationState(ctx context.Context, item ContentItem, from ModerationState) error

	DeleteContent(ctx context.Context, id uuid.UUID) error
	ListContentByAccount(ctx context.Context, accountID uuid.UUID) ([]ContentItem, error)

	// ListPublishedByChannel returns published items flagged for channel,
	// soonest first.
	ListPublishedByChannel(ctx context.Context, channel Channel, limit int) ([]ContentItem, error)
}

// ListingPhoto is a photo attached to a listing.
type ListingPhoto struct {
	ID         uuid.UUID
	ListingID  uuid.UUID
	AccountID  uuid.UUID
	StorageKey string
	SizeBytes  int64
	CreatedAt  time.Time
}
