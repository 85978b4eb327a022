// Package domain contains core business types and interfaces.
//
// This file defines the moderation lifecycle of published content.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// Moderation State
// =============================================================================

// ModerationState represents the publication lifecycle stage of a content item.
type ModerationState string

const (
	// ModerationDraft is the state of newly created content. The quota slot
	// is already consumed at this point.
	ModerationDraft ModerationState = "draft"

	// ModerationPending indicates the owner submitted the item for review.
	ModerationPending ModerationState = "pending"

	// ModerationApproved indicates a moderator accepted the item. It is not
	// visible until someone publishes it.
	ModerationApproved ModerationState = "approved"

	// ModerationRejected indicates a moderator refused the item. The owner
	// may resubmit it.
	ModerationRejected ModerationState = "rejected"

	// ModerationPublished is the only publicly visible state.
	ModerationPublished ModerationState = "published"

	// ModerationUnpublished hides published content until the owner
	// publishes it again.
	ModerationUnpublished ModerationState = "unpublished"
)

// String returns the string representation of the state.
func (s ModerationState) String() string {
	return string(s)
}

// IsValid returns true if the state is a recognized value.
func (s ModerationState) IsValid() bool {
	switch s {
	case ModerationDraft, ModerationPending, ModerationApproved,
		ModerationRejected, ModerationPublished, ModerationUnpublished:
		return true
	}
	return false
}

// IsPubliclyVisible returns true if content in this state may be rendered publicly.
func (s ModerationState) IsPubliclyVisible() bool {
	return s == ModerationPublished
}

// =============================================================================
// Actors
// =============================================================================

// ActorRole is the capacity in which an actor requests a transition.
type ActorRole string

const (
	RoleOwner     ActorRole = "owner"
	RoleModerator ActorRole = "moderator"
)

// Actor is the identity supplied by the authentication collaborator.
type Actor struct {
	ID        uuid.UUID
	Moderator bool
}

// RolesFor returns the roles actor holds with respect to content owned by ownerID.
func (a Actor) RolesFor(ownerID uuid.UUID) []ActorRole {
	var roles []ActorRole
	if a.ID != uuid.Nil && a.ID == ownerID {
		roles = append(roles, RoleOwner)
	}
	if a.Moderator {
		roles = append(roles, RoleModerator)
	}
	return roles
}

// =============================================================================
// Transitions
// =============================================================================

type edge struct {
	from, to ModerationState
}

// transitions maps every allowed edge to the roles that may take it.
var transitions = map[edge][]ActorRole{
	{ModerationDraft, ModerationPending}:         {RoleOwner},
	{ModerationRejected, ModerationPending}:      {RoleOwner},
	{ModerationPending, ModerationApproved}:      {RoleModerator},
	{ModerationPending, ModerationRejected}:      {RoleModerator},
	{ModerationApproved, ModerationPublished}:    {RoleOwner, RoleModerator},
	{ModerationPublished, ModerationUnpublished}: {RoleOwner},
	{ModerationUnpublished, ModerationPublished}: {RoleOwner},
}

// CanTransitionTo checks if the edge exists, regardless of who asks.
func (s ModerationState) CanTransitionTo(target ModerationState) bool {
	_, ok := transitions[edge{s, target}]
	return ok
}

// CheckTransition validates the edge from -> to for an actor holding roles.
// Unknown edges fail with EINVALIDTRANSITION, known edges requested by the
// wrong party fail with EFORBIDDEN.
func CheckTransition(from, to ModerationState, roles []ActorRole) error {
	const op = "moderation.transition"

	allowed, ok := transitions[edge{from, to}]
	if !ok {
		return InvalidTransition(op, from, to)
	}
	for _, need := range allowed {
		for _, have := range roles {
			if need == have {
				return nil
			}
		}
	}
	return Forbidden(op, fmt.Sprintf("only the %s may move content from %s to %s", joinRoles(allowed), from, to))
}

func joinRoles(roles []ActorRole) string {
	switch len(roles) {
	case 0:
		return ""
	case 1:
		return string(roles[0])
	}
	return string(roles[0]) + " or " + string(roles[1])
}
