// Package memory implements the engine's storage ports in process memory.
//
// It is used by tests and by single-instance development setups. All state
// is guarded by one mutex, which makes AtomicIncrement atomic within this
// store; it gives no guarantees across processes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

type counterKey struct {
	accountID uuid.UUID
	period    domain.PeriodKey
}

// Store implements domain.CounterStore, domain.PhotoStore,
// domain.AccountStore and domain.ContentStore.
type Store struct {
	mu       sync.Mutex
	counters map[counterKey]domain.UsageRecord
	accounts map[uuid.UUID]domain.Account
	content  map[uuid.UUID]domain.ContentItem
	photos   map[uuid.UUID][]domain.ListingPhoto
	slots    map[uuid.UUID]int

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		counters: make(map[counterKey]domain.UsageRecord),
		accounts: make(map[uuid.UUID]domain.Account),
		content:  make(map[uuid.UUID]domain.ContentItem),
		photos:   make(map[uuid.UUID][]domain.ListingPhoto),
		slots:    make(map[uuid.UUID]int),
		now:      time.Now,
	}
}

// =============================================================================
// Counters
// =============================================================================

// ReadCounter returns the record for (accountID, key) or ErrNoRecord.
func (s *Store) ReadCounter(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey) (*domain.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.counters[counterKey{accountID, key}]
	if !ok {
		return nil, domain.ErrNoRecord
	}
	return &rec, nil
}

// AtomicIncrement adds delta to field, creating the record if needed.
func (s *Store) AtomicIncrement(ctx context.Context, accountID uuid.UUID, key domain.PeriodKey, field domain.UsageField, delta float64) (domain.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.UsageRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := counterKey{accountID, key}
	rec, ok := s.counters[ck]
	if !ok {
		rec = domain.ZeroUsage(accountID, key)
	}

	switch field {
	case domain.UsageEventsCreated:
		rec.EventsCreated = max(0, rec.EventsCreated+int64(delta))
	case domain.UsageStorageUsedMB:
		rec.StorageUsedMB = max(0, rec.StorageUsedMB+delta)
	case domain.UsagePhotosUploaded:
		rec.PhotosUploaded = max(0, rec.PhotosUploaded+int64(delta))
	}
	rec.UpdatedAt = s.now()

	s.counters[ck] = rec
	return rec, nil
}

// ListCounters returns the existing records among keys, in the order of keys.
func (s *Store) ListCounters(ctx context.Context, accountID uuid.UUID, keys []domain.PeriodKey) ([]domain.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.UsageRecord
	for _, k := range keys {
		if rec, ok := s.counters[counterKey{accountID, k}]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// =============================================================================
// Accounts
// =============================================================================

// GetAccount returns the account or ErrNoRecord.
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNoRecord
	}
	return &a, nil
}

// CreateAccount stores a new account. An existing id returns ErrAlreadyExists.
func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return domain.ErrAlreadyExists
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	s.accounts[account.ID] = account
	return nil
}

// UpdateAccountPlan changes the account's current plan.
func (s *Store) UpdateAccountPlan(ctx context.Context, id uuid.UUID, plan domain.PlanID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.ErrNoRecord
	}
	a.PlanID = plan
	s.accounts[id] = a
	return nil
}

// =============================================================================
// Content
// =============================================================================

// CreateContent stores a new item.
func (s *Store) CreateContent(ctx context.Context, item domain.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.content[item.ID] = item
	return nil
}

// GetContent returns the item or ErrNoRecord.
func (s *Store) GetContent(ctx context.Context, id uuid.UUID) (*domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.content[id]
	if !ok {
		return nil, domain.ErrNoRecord
	}
	return &item, nil
}

// UpdateModerationState writes the new state if the stored one is still from.
func (s *Store) UpdateModerationState(ctx context.Context, item domain.ContentItem, from domain.ModerationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.content[item.ID]
	if !ok {
		return domain.ErrNoRecord
	}
	if current.ModerationState != from {
		return domain.ErrStateConflict
	}
	current.ModerationState = item.ModerationState
	current.UpdatedAt = item.UpdatedAt
	current.PublishedAt = item.PublishedAt
	s.content[item.ID] = current
	return nil
}

// DeleteContent removes the item. Deleting a missing item returns ErrNoRecord.
func (s *Store) DeleteContent(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.content[id]; !ok {
		return domain.ErrNoRecord
	}
	delete(s.content, id)
	return nil
}

// ListContentByAccount returns the account's items, newest first.
func (s *Store) ListContentByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ContentItem
	for _, item := range s.content {
		if item.AccountID == accountID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListPublishedByChannel returns published items flagged for channel, soonest first.
func (s *Store) ListPublishedByChannel(ctx context.Context, channel domain.Channel, limit int) ([]domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ContentItem
	for _, item := range s.content {
		if item.VisibleOn(channel) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// Photos
// =============================================================================

// CountListingPhotos returns the number of photo slots taken on the listing.
func (s *Store) CountListingPhotos(ctx context.Context, listingID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.slots[listingID], nil
}

// AdjustListingPhotoSlots adds delta to the listing's taken slots, never
// going below zero, and returns the new count.
func (s *Store) AdjustListingPhotoSlots(ctx context.Context, listingID uuid.UUID, delta int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := max(0, s.slots[listingID]+delta)
	s.slots[listingID] = n
	return n, nil
}

// AddListingPhoto attaches a photo to its listing.
func (s *Store) AddListingPhoto(ctx context.Context, photo domain.ListingPhoto) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.photos[photo.ListingID] = append(s.photos[photo.ListingID], photo)
	return nil
}
