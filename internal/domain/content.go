// Package domain contains core business types and interfaces.
//
// This file defines merchant content (events) and its distribution snapshot.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentKind identifies the type of merchant content.
type ContentKind string

const (
	ContentKindEvent ContentKind = "event"
)

// ContentItem is a piece of merchant content gated by quota and moderation.
type ContentItem struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	ListingID uuid.UUID
	Kind      ContentKind

	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      *time.Time

	ModerationState ModerationState

	// Flags and PlanAtCreation are captured when the item is created and
	// are not updated if the account later changes plan.
	Flags          ChannelFlags
	PlanAtCreation PlanID

	// PeriodKey is the usage period whose slot this item consumed.
	PeriodKey PeriodKey

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
}

// VisibleOn reports whether renderers may show the item on channel now.
func (c *ContentItem) VisibleOn(channel Channel) bool {
	return c.Flags.Allows(channel) && c.ModerationState.IsPubliclyVisible()
}

// TransitionTo moves the item to target on behalf of actor.
// The state is left unchanged when the transition is refused.
func (c *ContentItem) TransitionTo(target ModerationState, actor Actor, now time.Time) error {
	if err := CheckTransition(c.ModerationState, target, actor.RolesFor(c.AccountID)); err != nil {
		return err
	}

	c.ModerationState = target
	c.UpdatedAt = now
	if target == ModerationPublished && c.PublishedAt == nil {
		published := now
		c.PublishedAt = &published
	}
	return nil
}

// ContentDraft contains the validated parameters for new content.
type ContentDraft struct {
	ListingID   uuid.UUID  `json:"listing_id" validate:"required"`
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Location    string     `json:"location" validate:"max=300"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at" validate:"omitempty,gtfield=StartsAt"`
}
