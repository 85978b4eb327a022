// Package domain contains core business types and interfaces.
//
// This file defines quota actions and the allow/deny decisions returned by
// the quota gate. A denial is a normal value, not an error.
package domain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// ActionKind identifies what a quota check is for.
type ActionKind string

const (
	ActionCreateEvent    ActionKind = "create_event"
	ActionUploadPhoto    ActionKind = "upload_photo"
	ActionConsumeStorage ActionKind = "consume_storage"
)

// ReasonCode is the machine-readable cause of a denial.
type ReasonCode string

const (
	ReasonEventsExceeded  ReasonCode = "QUOTA_EVENTS_EXCEEDED"
	ReasonPhotosExceeded  ReasonCode = "QUOTA_PHOTOS_EXCEEDED"
	ReasonStorageExceeded ReasonCode = "QUOTA_STORAGE_EXCEEDED"
)

// bytesPerMB matches the decimal megabytes used by the plan catalog.
const bytesPerMB = 1e6

// limitTolerance absorbs float rounding in summed MB counters.
const limitTolerance = 1e-9

// Action is a request to consume quota.
type Action struct {
	Kind      ActionKind
	ListingID uuid.UUID // upload_photo only
	Bytes     int64     // consume_storage only
}

// CreateEvent returns the action for creating one event.
func CreateEvent() Action {
	return Action{Kind: ActionCreateEvent}
}

// UploadPhoto returns the action for adding one photo to a listing.
func UploadPhoto(listingID uuid.UUID) Action {
	return Action{Kind: ActionUploadPhoto, ListingID: listingID}
}

// ConsumeStorage returns the action for storing n bytes.
func ConsumeStorage(n int64) Action {
	return Action{Kind: ActionConsumeStorage, Bytes: n}
}

// Validate checks that the action carries the input its kind needs.
func (a Action) Validate() error {
	const op = "quota.action"
	switch a.Kind {
	case ActionCreateEvent:
		return nil
	case ActionUploadPhoto:
		if a.ListingID == uuid.Nil {
			return Invalid(op, "listing id is required for photo uploads")
		}
		return nil
	case ActionConsumeStorage:
		if a.Bytes <= 0 {
			return Invalid(op, "storage consumption must be a positive number of bytes")
		}
		return nil
	}
	return Invalid(op, fmt.Sprintf("unknown quota action %q", a.Kind))
}

// Field returns the usage counter charged by the action.
func (a Action) Field() UsageField {
	switch a.Kind {
	case ActionUploadPhoto:
		return UsagePhotosUploaded
	case ActionConsumeStorage:
		return UsageStorageUsedMB
	}
	return UsageEventsCreated
}

// Delta returns how much the action adds to its counter.
func (a Action) Delta() float64 {
	if a.Kind == ActionConsumeStorage {
		return float64(a.Bytes) / bytesPerMB
	}
	return 1
}

// Reservation records quota consumed ahead of a write so it can be released
// if the write fails.
type Reservation struct {
	AccountID uuid.UUID
	PeriodKey PeriodKey
	Field     UsageField
	Delta     float64

	// ListingID is set for photo reservations, which also hold a slot on
	// the listing.
	ListingID uuid.UUID
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Action    ActionKind
	Reason    ReasonCode // empty when allowed
	Message   string     // for display; includes used/limit on denial
	Used      float64
	Limit     float64
	Remaining float64

	// Set only when Reserve allowed the action.
	Reservation *Reservation
}

// Decide evaluates whether action fits in plan given the current usage.
//
// used is the event counter for create_event, the listing's photo count for
// upload_photo and the MB counter for consume_storage.
func Decide(plan Plan, action Action, used float64) Decision {
	if !Exceeds(used+action.Delta(), Limit(plan, action.Kind)) {
		return Allow(plan, action, used)
	}
	return Deny(plan, action, used)
}

// Allow builds an allowed decision reporting used against the plan limit.
func Allow(plan Plan, action Action, used float64) Decision {
	limit := Limit(plan, action.Kind)
	return Decision{
		Allowed:   true,
		Action:    action.Kind,
		Used:      used,
		Limit:     limit,
		Remaining: Headroom(limit, used),
	}
}

// Deny builds a denial carrying the reason code and a display message.
func Deny(plan Plan, action Action, used float64) Decision {
	limit := Limit(plan, action.Kind)
	return Decision{
		Allowed:   false,
		Action:    action.Kind,
		Reason:    reasonFor(action.Kind),
		Message:   denialMessage(plan, action, used, limit),
		Used:      used,
		Limit:     limit,
		Remaining: Headroom(limit, used),
	}
}

// Limit returns the plan entitlement governing kind.
func Limit(plan Plan, kind ActionKind) float64 {
	switch kind {
	case ActionUploadPhoto:
		return float64(plan.MaxPhotosPerListing)
	case ActionConsumeStorage:
		return plan.MaxStorageMB
	}
	return float64(plan.MaxEventsPerPeriod)
}

// Exceeds reports whether value is over limit, ignoring float rounding.
func Exceeds(value, limit float64) bool {
	return value > limit+limitTolerance
}

// Headroom returns limit-used, never negative.
func Headroom(limit, used float64) float64 {
	if used >= limit {
		return 0
	}
	return limit - used
}

func reasonFor(kind ActionKind) ReasonCode {
	switch kind {
	case ActionUploadPhoto:
		return ReasonPhotosExceeded
	case ActionConsumeStorage:
		return ReasonStorageExceeded
	}
	return ReasonEventsExceeded
}

func denialMessage(plan Plan, action Action, used, limit float64) string {
	switch action.Kind {
	case ActionUploadPhoto:
		return fmt.Sprintf("Photo limit reached: %s/%s photos on this listing with the %s plan",
			formatAmount(used), formatAmount(limit), plan.DisplayName())
	case ActionConsumeStorage:
		return fmt.Sprintf("Storage limit reached: %s/%s MB used, this upload needs %s MB more with the %s plan",
			formatAmount(used), formatAmount(limit), formatAmount(action.Delta()), plan.DisplayName())
	}
	return fmt.Sprintf("Event limit reached: %s/%s events used this month with the %s plan",
		formatAmount(used), formatAmount(limit), plan.DisplayName())
}

// formatAmount rounds to two decimals so float counters print cleanly.
func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
