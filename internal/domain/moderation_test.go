package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition(t *testing.T) {
	owner := []ActorRole{RoleOwner}
	moderator := []ActorRole{RoleModerator}
	both := []ActorRole{RoleOwner, RoleModerator}

	tests := []struct {
		name     string
		from, to ModerationState
		roles    []ActorRole
		wantCode string
	}{
		{"owner submits draft", ModerationDraft, ModerationPending, owner, ""},
		{"owner resubmits rejected", ModerationRejected, ModerationPending, owner, ""},
		{"moderator approves", ModerationPending, ModerationApproved, moderator, ""},
		{"moderator rejects", ModerationPending, ModerationRejected, moderator, ""},
		{"owner publishes approved", ModerationApproved, ModerationPublished, owner, ""},
		{"moderator publishes approved", ModerationApproved, ModerationPublished, moderator, ""},
		{"owner unpublishes", ModerationPublished, ModerationUnpublished, owner, ""},
		{"owner republishes", ModerationUnpublished, ModerationPublished, owner, ""},
		{"owner moderating own item holds both roles", ModerationPending, ModerationApproved, both, ""},

		{"owner cannot approve", ModerationPending, ModerationApproved, owner, EFORBIDDEN},
		{"moderator cannot submit", ModerationDraft, ModerationPending, moderator, EFORBIDDEN},
		{"moderator cannot unpublish", ModerationPublished, ModerationUnpublished, moderator, EFORBIDDEN},
		{"stranger cannot publish", ModerationApproved, ModerationPublished, nil, EFORBIDDEN},

		{"draft cannot skip review", ModerationDraft, ModerationPublished, both, EINVALIDTRANSITION},
		{"rejected cannot be approved", ModerationRejected, ModerationApproved, both, EINVALIDTRANSITION},
		{"published is not re-reviewed", ModerationPublished, ModerationPending, both, EINVALIDTRANSITION},
		{"self transition", ModerationPending, ModerationPending, both, EINVALIDTRANSITION},
		{"unknown target", ModerationDraft, ModerationState("archived"), both, EINVALIDTRANSITION},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to, tt.roles)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantCode, ErrorCode(err))
		})
	}
}

func TestModerationState_IsPubliclyVisible(t *testing.T) {
	for _, s := range []ModerationState{
		ModerationDraft, ModerationPending, ModerationApproved,
		ModerationRejected, ModerationPublished, ModerationUnpublished,
	} {
		assert.True(t, s.IsValid(), s)
		assert.Equal(t, s == ModerationPublished, s.IsPubliclyVisible(), s)
	}
	assert.False(t, ModerationState("archived").IsValid())
}

func TestActor_RolesFor(t *testing.T) {
	owner := uuid.New()

	assert.Equal(t, []ActorRole{RoleOwner}, Actor{ID: owner}.RolesFor(owner))
	assert.Equal(t, []ActorRole{RoleModerator}, Actor{ID: uuid.New(), Moderator: true}.RolesFor(owner))
	assert.Equal(t, []ActorRole{RoleOwner, RoleModerator}, Actor{ID: owner, Moderator: true}.RolesFor(owner))
	assert.Empty(t, Actor{}.RolesFor(uuid.Nil))
}

func TestContentItem_TransitionTo(t *testing.T) {
	owner := Actor{ID: uuid.New()}
	moderator := Actor{ID: uuid.New(), Moderator: true}
	t0 := time.Date(2024, time.May, 2, 10, 0, 0, 0, time.UTC)

	item := &ContentItem{
		ID:              uuid.New(),
		AccountID:       owner.ID,
		ModerationState: ModerationDraft,
		Flags:           ChannelFlags{EstablishmentPage: true, Homepage: true},
	}

	require.NoError(t, item.TransitionTo(ModerationPending, owner, t0))
	require.NoError(t, item.TransitionTo(ModerationApproved, moderator, t0.Add(time.Hour)))
	assert.False(t, item.VisibleOn(ChannelEstablishmentPage))
	assert.Nil(t, item.PublishedAt)

	published := t0.Add(2 * time.Hour)
	require.NoError(t, item.TransitionTo(ModerationPublished, owner, published))
	assert.True(t, item.VisibleOn(ChannelEstablishmentPage))
	assert.True(t, item.VisibleOn(ChannelHomepage))
	assert.False(t, item.VisibleOn(ChannelNewsletter))
	require.NotNil(t, item.PublishedAt)
	assert.Equal(t, published, *item.PublishedAt)

	require.NoError(t, item.TransitionTo(ModerationUnpublished, owner, t0.Add(3*time.Hour)))
	assert.False(t, item.VisibleOn(ChannelEstablishmentPage))

	// Republishing keeps the first publication time.
	require.NoError(t, item.TransitionTo(ModerationPublished, owner, t0.Add(4*time.Hour)))
	assert.Equal(t, published, *item.PublishedAt)
	assert.Equal(t, t0.Add(4*time.Hour), item.UpdatedAt)
}

func TestContentItem_TransitionTo_RefusedLeavesStateUnchanged(t *testing.T) {
	item := &ContentItem{AccountID: uuid.New(), ModerationState: ModerationPending}

	err := item.TransitionTo(ModerationApproved, Actor{ID: item.AccountID}, time.Now())
	assert.Equal(t, EFORBIDDEN, ErrorCode(err))
	assert.Equal(t, ModerationPending, item.ModerationState)
	assert.True(t, item.UpdatedAt.IsZero())
}
