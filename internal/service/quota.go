// Package service contains the business logic layer.
//
// This file implements the quota gate: plan entitlements checked against
// usage counters, with pessimistic reservation.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/domain"
	"github.com/raphaelnuziere-create/guide-de-lyon-sub001/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaGate decides whether an account may consume quota.
//
// Denials are returned as Decision values with Allowed=false. An error means
// the decision could not be made at all (bad input, storage unavailable).
type QuotaGate interface {
	// Check reports what Reserve would decide without consuming anything.
	Check(ctx context.Context, account domain.Account, plan domain.Plan, action domain.Action) (domain.Decision, error)

	// Reserve consumes quota for action if the plan allows it. The counter
	// is incremented before Reserve returns; callers must Release the
	// reservation if the guarded write fails.
	Reserve(ctx context.Context, account domain.Account, plan domain.Plan, action domain.Action) (domain.Decision, error)

	// Release returns reserved quota after a failed write.
	Release(ctx context.Context, r domain.Reservation) error
}

// =============================================================================
// Implementation
// =============================================================================

type quotaGate struct {
	usage  UsageCounter
	photos domain.PhotoStore
	logger *slog.Logger
	now    func() time.Time
}

// NewQuotaGate creates a new QuotaGate. A nil clock defaults to time.Now.
func NewQuotaGate(usage UsageCounter, photos domain.PhotoStore, logger *slog.Logger, clock func() time.Time) QuotaGate {
	if clock == nil {
		clock = time.Now
	}
	return &quotaGate{
		usage:  usage,
		photos: photos,
		logger: logger,
		now:    clock,
	}
}

// Check reports what Reserve would decide without consuming anything.
func (g *quotaGate) Check(ctx context.Context, account domain.Account, plan domain.Plan, action domain.Action) (domain.Decision, error) {
	const op = "quota.check"

	if err := action.Validate(); err != nil {
		return domain.Decision{}, err
	}

	used, err := g.currentUse(ctx, op, account, action)
	if err != nil {
		return domain.Decision{}, err
	}

	d := domain.Decide(plan, action, used)
	metrics.QuotaChecked(string(action.Kind), d.Allowed)
	return d, nil
}

// Reserve consumes quota for action if the plan allows it.
//
// The counter is incremented first and rolled back when the new value breaks
// the limit, so two concurrent requests can never both take the last slot.
// Photo limits apply per listing: the reservation takes a slot on the listing
// and also charges the period's upload statistics.
func (g *quotaGate) Reserve(ctx context.Context, account domain.Account, plan domain.Plan, action domain.Action) (domain.Decision, error) {
	const op = "quota.reserve"

	if err := action.Validate(); err != nil {
		return domain.Decision{}, err
	}

	var (
		d   domain.Decision
		err error
	)
	if action.Kind == domain.ActionUploadPhoto {
		d, err = g.reservePhoto(ctx, op, account, plan, action)
	} else {
		d, err = g.reserveCounted(ctx, account, plan, action)
	}
	if err != nil {
		return domain.Decision{}, err
	}

	metrics.QuotaReserved(string(action.Kind), d.Allowed)
	if !d.Allowed {
		g.logger.Info("quota exceeded",
			"account_id", account.ID,
			"plan", plan.ID,
			"action", action.Kind,
			"reason", d.Reason,
			"used", d.Used,
			"limit", d.Limit,
		)
	}
	return d, nil
}

// Release returns reserved quota after a failed write. A photo reservation
// frees its listing slot before the period statistics.
func (g *quotaGate) Release(ctx context.Context, r domain.Reservation) error {
	const op = "quota.release"

	var slotErr error
	if r.ListingID != uuid.Nil {
		slotErr = g.freePhotoSlot(ctx, op, r.ListingID)
	}
	if err := g.usage.Release(ctx, r); err != nil {
		return err
	}
	return slotErr
}

func (g *quotaGate) reserveCounted(ctx context.Context, account domain.Account, plan domain.Plan, action domain.Action) (domain.Decision, error) {
	field, delta := action.Field(), action.Delta()

	rec, err := g.usage.Increment(ctx, account, g.now(), field, delta)
	if err != nil {
		return domain.Decision{}, err
	}

	after := rec.Value(field)
	limit := domain.Limit(plan, action.Kind)
	if domain.Exceeds(after, limit) {
		// Over the limit: undo our own increment. If that fails the counter
		// stays high, which only ever hides headroom.
		_, err := g.usage.Decrement(context.WithoutCancel(ctx), account.ID, rec.PeriodKey, field, delta)
		if err != nil {
			g.logger.Warn("failed to roll back denied reservation",
				"error", err,
				"account_id", account.ID,
				"period", rec.PeriodKey,
				"field", field,
			)
		}
		// Concurrent reservations that are about to roll back can push
		// after-delta past the limit; a denial never reports more than it.
		return domain.Deny(plan, action, min(after-delta, limit)), nil
	}

	d := domain.Allow(plan, action, after)
	d.Reservation = &domain.Reservation{
		AccountID: account.ID,
		PeriodKey: rec.PeriodKey,
		Field:     field,
		Delta:     delta,
	}
	return d, nil
}

func (g *quotaGate) reservePhoto(ctx context.Context, op string, account domain.Account, plan domain.Plan, action domain.Action) (domain.Decision, error) {
	taken, err := g.photos.AdjustListingPhotoSlots(ctx, action.ListingID, 1)
	if err != nil {
		g.logger.Error("failed to take listing photo slot", "error", err, "op", op, "listing_id", action.ListingID)
		return domain.Decision{}, domain.StorageUnavailable(err, op, "Photo counts are unavailable")
	}

	limit := domain.Limit(plan, action.Kind)
	if domain.Exceeds(float64(taken), limit) {
		_ = g.freePhotoSlot(ctx, op, action.ListingID)
		return domain.Deny(plan, action, min(float64(taken-1), limit)), nil
	}

	rec, err := g.usage.Increment(ctx, account, g.now(), domain.UsagePhotosUploaded, 1)
	if err != nil {
		_ = g.freePhotoSlot(ctx, op, action.ListingID)
		return domain.Decision{}, err
	}

	d := domain.Allow(plan, action, float64(taken))
	d.Reservation = &domain.Reservation{
		AccountID: account.ID,
		PeriodKey: rec.PeriodKey,
		Field:     domain.UsagePhotosUploaded,
		Delta:     1,
		ListingID: action.ListingID,
	}
	return d, nil
}

// freePhotoSlot gives back one slot on the listing. On failure the slot stays
// taken and the listing shows one photo too many.
func (g *quotaGate) freePhotoSlot(ctx context.Context, op string, listingID uuid.UUID) error {
	if _, err := g.photos.AdjustListingPhotoSlots(context.WithoutCancel(ctx), listingID, -1); err != nil {
		g.logger.Warn("failed to free listing photo slot", "error", err, "op", op, "listing_id", listingID)
		return domain.StorageUnavailable(err, op, "Photo counts are unavailable")
	}
	return nil
}

// currentUse returns the figure the action's limit is compared with.
func (g *quotaGate) currentUse(ctx context.Context, op string, account domain.Account, action domain.Action) (float64, error) {
	if action.Kind == domain.ActionUploadPhoto {
		count, err := g.photos.CountListingPhotos(ctx, action.ListingID)
		if err != nil {
			g.logger.Error("failed to count listing photos", "error", err, "op", op, "listing_id", action.ListingID)
			return 0, domain.StorageUnavailable(err, op, "Photo counts are unavailable")
		}
		return float64(count), nil
	}

	rec, err := g.usage.GetUsage(ctx, account, g.now())
	if err != nil {
		return 0, err
	}
	return rec.Value(action.Field()), nil
}
