package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
)

func TestStore_Counters(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := uuid.New()

	_, err := s.ReadCounter(ctx, id, "2024-03")
	assert.ErrorIs(t, err, domain.ErrNoRecord)

	rec, err := s.AtomicIncrement(ctx, id, "2024-03", domain.UsageStorageUsedMB, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, rec.StorageUsedMB)
	assert.False(t, rec.UpdatedAt.IsZero())

	rec, err = s.AtomicIncrement(ctx, id, "2024-03", domain.UsageStorageUsedMB, -10)
	require.NoError(t, err)
	assert.Zero(t, rec.StorageUsedMB)

	_, err = s.AtomicIncrement(ctx, id, "2024-01", domain.UsageEventsCreated, 1)
	require.NoError(t, err)

	records, err := s.ListCounters(ctx, id, []domain.PeriodKey{"2024-03", "2024-02", "2024-01"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.PeriodKey("2024-03"), records[0].PeriodKey)
	assert.Equal(t, domain.PeriodKey("2024-01"), records[1].PeriodKey)
}

func TestStore_AtomicIncrementConcurrent(t *testing.T) {
	s := New()
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AtomicIncrement(context.Background(), id, "2024-03", domain.UsageEventsCreated, 1)
		}()
	}
	wg.Wait()

	rec, err := s.ReadCounter(context.Background(), id, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.EventsCreated)
}

func TestStore_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AtomicIncrement(ctx, uuid.New(), "2024-03", domain.UsageEventsCreated, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_UpdateModerationStateCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	item := domain.ContentItem{ID: uuid.New(), ModerationState: domain.ModerationPending}
	require.NoError(t, s.CreateContent(ctx, item))

	item.ModerationState = domain.ModerationApproved
	require.NoError(t, s.UpdateModerationState(ctx, item, domain.ModerationPending))

	item.ModerationState = domain.ModerationRejected
	err := s.UpdateModerationState(ctx, item, domain.ModerationPending)
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	stored, err := s.GetContent(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationApproved, stored.ModerationState)

	err = s.UpdateModerationState(ctx, domain.ContentItem{ID: uuid.New()}, domain.ModerationDraft)
	assert.ErrorIs(t, err, domain.ErrNoRecord)
}

func TestStore_ListPublishedByChannel(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	add := func(state domain.ModerationState, flags domain.ChannelFlags, startsIn time.Duration) uuid.UUID {
		item := domain.ContentItem{
			ID:              uuid.New(),
			ModerationState: state,
			Flags:           flags,
			StartsAt:        base.Add(startsIn),
		}
		require.NoError(t, s.CreateContent(ctx, item))
		return item.ID
	}

	page := domain.ChannelFlags{EstablishmentPage: true}
	all := domain.ChannelFlags{EstablishmentPage: true, Homepage: true, Newsletter: true, Social: true}

	later := add(domain.ModerationPublished, page, 48*time.Hour)
	sooner := add(domain.ModerationPublished, all, 24*time.Hour)
	add(domain.ModerationApproved, all, time.Hour)

	items, err := s.ListPublishedByChannel(ctx, domain.ChannelEstablishmentPage, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, sooner, items[0].ID)
	assert.Equal(t, later, items[1].ID)

	items, err = s.ListPublishedByChannel(ctx, domain.ChannelNewsletter, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, sooner, items[0].ID)
}

func TestStore_Accounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := uuid.New()

	_, err := s.GetAccount(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNoRecord)

	require.NoError(t, s.CreateAccount(ctx, domain.Account{ID: id, PlanID: domain.PlanBasic}))
	require.NoError(t, s.UpdateAccountPlan(ctx, id, domain.PlanPro))

	a, err := s.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, a.PlanID)
	assert.False(t, a.CreatedAt.IsZero())

	assert.ErrorIs(t, s.UpdateAccountPlan(ctx, uuid.New(), domain.PlanPro), domain.ErrNoRecord)

	// A second create never overwrites the stored plan or anchor.
	err = s.CreateAccount(ctx, domain.Account{ID: id, PlanID: domain.PlanBasic, PeriodAnchor: time.Now()})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	a, err = s.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, a.PlanID)
	assert.True(t, a.PeriodAnchor.IsZero())
}

func TestStore_ListingPhotoSlots(t *testing.T) {
	s := New()
	ctx := context.Background()
	listing := uuid.New()

	n, err := s.AdjustListingPhotoSlots(ctx, listing, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.AdjustListingPhotoSlots(ctx, listing, -3)
	require.NoError(t, err)
	assert.Zero(t, n)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AdjustListingPhotoSlots(ctx, listing, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := s.CountListingPhotos(ctx, listing)
	require.NoError(t, err)
	assert.Equal(t, 50, count)

	// Recording a photo does not take another slot.
	require.NoError(t, s.AddListingPhoto(ctx, domain.ListingPhoto{ID: uuid.New(), ListingID: listing}))
	count, err = s.CountListingPhotos(ctx, listing)
	require.NoError(t, err)
	assert.Equal(t, 50, count)
}
