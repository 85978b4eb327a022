package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/store/memory"
)

func TestContentService_CreateSnapshotsChannels(t *testing.T) {
	tests := []struct {
		plan domain.PlanID
		want []domain.Channel
	}{
		{domain.PlanBasic, []domain.Channel{domain.ChannelEstablishmentPage}},
		{domain.PlanPro, []domain.Channel{domain.ChannelEstablishmentPage, domain.ChannelHomepage, domain.ChannelSocial}},
		{domain.PlanExpert, domain.Channels()},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			e := newEngine(t)
			account := e.register(t, tt.plan)

			draft := e.draft()
			draft.Title = "  Wine tasting  "
			item, d, err := e.content.CreateContentWithDistribution(context.Background(), domain.Actor{ID: account.ID}, account.ID, draft)
			require.NoError(t, err)
			require.True(t, d.Allowed)

			assert.Equal(t, "Wine tasting", item.Title)
			assert.Equal(t, domain.ModerationDraft, item.ModerationState)
			assert.Equal(t, tt.plan, item.PlanAtCreation)
			assert.Equal(t, tt.want, item.Flags.Enabled())
			assert.Equal(t, domain.PeriodKey("2024-03"), item.PeriodKey)

			stored, err := e.store.GetContent(context.Background(), item.ID)
			require.NoError(t, err)
			assert.Equal(t, item.Flags, stored.Flags)
		})
	}
}

func TestContentService_CreateDeniedAtLimit(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)
	owner := domain.Actor{ID: account.ID}

	for i := 0; i < 3; i++ {
		_, _, err := e.content.CreateContentWithDistribution(ctx, owner, account.ID, e.draft())
		require.NoError(t, err)
	}

	item, d, err := e.content.CreateContentWithDistribution(ctx, owner, account.ID, e.draft())
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonEventsExceeded, d.Reason)

	items, err := e.store.ListContentByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestContentService_CreateRefusals(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)

	_, _, err := e.content.CreateContentWithDistribution(ctx, domain.Actor{ID: uuid.New()}, account.ID, e.draft())
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, _, err = e.content.CreateContentWithDistribution(ctx, domain.Actor{}, uuid.Nil, e.draft())
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	bad := e.draft()
	bad.Title = "  x "
	_, _, err = e.content.CreateContentWithDistribution(ctx, domain.Actor{ID: account.ID}, account.ID, bad)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")

	// Refusals consume nothing.
	assert.Zero(t, e.usageNow(t, account).EventsCreated)
}

func TestContentService_CreateReleasesSlotWhenWriteFails(t *testing.T) {
	store := memory.New()
	content := &flakyContent{Store: store, failCreate: true}
	e := newEngineWith(t, store, content)
	account := e.register(t, domain.PlanBasic)

	item, _, err := e.content.CreateContentWithDistribution(context.Background(), domain.Actor{ID: account.ID}, account.ID, e.draft())
	assert.Nil(t, item)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Zero(t, e.usageNow(t, account).EventsCreated)
}

func TestContentService_FlagsSurvivePlanChange(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	account := e.register(t, domain.PlanExpert)

	item, _, err := e.content.CreateContentWithDistribution(ctx, domain.Actor{ID: account.ID}, account.ID, e.draft())
	require.NoError(t, err)

	_, err = e.accounts.ChangePlan(ctx, domain.Actor{ID: uuid.New(), Moderator: true}, account.ID, domain.PlanBasic)
	require.NoError(t, err)

	stored, err := e.content.Get(ctx, domain.Actor{ID: account.ID}, item.ID)
	require.NoError(t, err)
	assert.True(t, stored.Flags.Newsletter)
	assert.Equal(t, domain.PlanExpert, stored.PlanAtCreation)
}

func TestContentService_ModerationLifecycle(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	account := e.register(t, domain.PlanPro)
	owner := domain.Actor{ID: account.ID}
	moderator := domain.Actor{ID: uuid.New(), Moderator: true}
	stranger := domain.Actor{ID: uuid.New()}

	item, _, err := e.content.CreateContentWithDistribution(ctx, owner, account.ID, e.draft())
	require.NoError(t, err)

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationPublished, owner)
	assert.Equal(t, domain.EINVALIDTRANSITION, domain.ErrorCode(err))

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationPending, stranger)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationState("archived"), owner)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationPending, owner)
	require.NoError(t, err)

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationApproved, owner)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationApproved, moderator)
	require.NoError(t, err)

	// Approved is not yet visible to the public.
	_, err = e.content.Get(ctx, stranger, item.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	e.clock.Set(e.clock.Now().Add(time.Hour))
	published, err := e.content.TransitionModeration(ctx, item.ID, domain.ModerationPublished, owner)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, e.clock.Now(), *published.PublishedAt)

	got, err := e.content.Get(ctx, stranger, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationPublished, got.ModerationState)

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationUnpublished, moderator)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, err = e.content.TransitionModeration(ctx, uuid.New(), domain.ModerationPending, owner)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestContentService_TransitionConflict(t *testing.T) {
	store := memory.New()
	content := &flakyContent{Store: store}
	e := newEngineWith(t, store, content)
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)
	owner := domain.Actor{ID: account.ID}
	moderator := domain.Actor{ID: uuid.New(), Moderator: true}

	item, _, err := e.content.CreateContentWithDistribution(ctx, owner, account.ID, e.draft())
	require.NoError(t, err)
	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationPending, owner)
	require.NoError(t, err)

	// A second moderator rejects between our read and our write.
	content.beforeUpdate = func(read domain.ContentItem) {
		content.beforeUpdate = nil
		read.ModerationState = domain.ModerationRejected
		require.NoError(t, store.UpdateModerationState(ctx, read, domain.ModerationPending))
	}

	_, err = e.content.TransitionModeration(ctx, item.ID, domain.ModerationApproved, moderator)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	stored, err := store.GetContent(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationRejected, stored.ModerationState)
}

func TestContentService_ListChannel(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	moderator := domain.Actor{ID: uuid.New(), Moderator: true}

	publish := func(plan domain.PlanID, startsIn time.Duration) *domain.ContentItem {
		account := e.register(t, plan)
		owner := domain.Actor{ID: account.ID}
		draft := e.draft()
		draft.StartsAt = e.clock.Now().Add(startsIn)

		item, _, err := e.content.CreateContentWithDistribution(ctx, owner, account.ID, draft)
		require.NoError(t, err)
		for _, step := range []struct {
			to    domain.ModerationState
			actor domain.Actor
		}{
			{domain.ModerationPending, owner},
			{domain.ModerationApproved, moderator},
			{domain.ModerationPublished, owner},
		} {
			_, err := e.content.TransitionModeration(ctx, item.ID, step.to, step.actor)
			require.NoError(t, err)
		}
		return item
	}

	basic := publish(domain.PlanBasic, 72*time.Hour)
	expert := publish(domain.PlanExpert, 24*time.Hour)

	// An unpublished expert item is entitled but not visible.
	hidden := e.register(t, domain.PlanExpert)
	_, _, err := e.content.CreateContentWithDistribution(ctx, domain.Actor{ID: hidden.ID}, hidden.ID, e.draft())
	require.NoError(t, err)

	page, err := e.content.ListChannel(ctx, domain.ChannelEstablishmentPage, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, expert.ID, page[0].ID)
	assert.Equal(t, basic.ID, page[1].ID)

	home, err := e.content.ListChannel(ctx, domain.ChannelHomepage, 10)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, expert.ID, home[0].ID)

	limited, err := e.content.ListChannel(ctx, domain.ChannelEstablishmentPage, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestContentService_DeleteDoesNotRefund(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	account := e.register(t, domain.PlanBasic)
	owner := domain.Actor{ID: account.ID}

	item, _, err := e.content.CreateContentWithDistribution(ctx, owner, account.ID, e.draft())
	require.NoError(t, err)

	err = e.content.Delete(ctx, domain.Actor{ID: uuid.New()}, item.ID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	require.NoError(t, e.content.Delete(ctx, owner, item.ID))
	assert.Equal(t, int64(1), e.usageNow(t, account).EventsCreated)

	err = e.content.Delete(ctx, owner, item.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestContentService_ListAccount(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	account := e.register(t, domain.PlanPro)
	owner := domain.Actor{ID: account.ID}

	for i := 0; i < 2; i++ {
		_, _, err := e.content.CreateContentWithDistribution(ctx, owner, account.ID, e.draft())
		require.NoError(t, err)
	}

	items, err := e.content.ListAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = e.content.ListAccount(ctx, domain.Actor{ID: uuid.New(), Moderator: true}, account.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = e.content.ListAccount(ctx, domain.Actor{ID: uuid.New()}, account.ID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func TestContentService_CheckQuota(t *testing.T) {
	e := newEngine(t)
	account := e.register(t, domain.PlanBasic)

	d, err := e.content.CheckQuota(context.Background(), account.ID, domain.CreateEvent())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3.0, d.Remaining)

	_, err = e.content.CheckQuota(context.Background(), uuid.New(), domain.CreateEvent())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
